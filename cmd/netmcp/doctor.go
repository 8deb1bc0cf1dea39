package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"netmcp/internal/config"
	"netmcp/internal/driver"
	"netmcp/internal/inventory"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your netmcp installation",
		Long: `Verifies that the configuration, inventory, drivers, audit journal and
listen addresses are usable. Reports pass/fail for each check. No device
is contacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("netmcp doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, err := config.LoadOrDefault(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Inventory parses, every driver kind is known
			invPath := inventoryPath(cfg)
			snap, err := inventory.Load(invPath)
			if err != nil {
				printFail("Inventory", err.Error())
				failed++
			} else if snap.Len() == 0 {
				printWarn("Inventory", fmt.Sprintf("%s lists no devices", invPath))
				warned++
			} else {
				printPass("Inventory", fmt.Sprintf("%d device(s) in %s", snap.Len(), invPath))
				passed++

				drivers := driver.NewDefault(driverSettings(cfg))
				for _, e := range snap.Entries() {
					if _, err := drivers.Lookup(e.Driver); err != nil {
						printFail("Device: "+e.Hostname, err.Error())
						failed++
						continue
					}
					if p := e.OptionalArgs["path"]; e.Driver == "mock" && p != "" {
						if _, err := os.Stat(p); err != nil {
							printFail("Device: "+e.Hostname, fmt.Sprintf("mock fixture missing: %s", p))
							failed++
							continue
						}
					}
					if e.Username == "" {
						printWarn("Device: "+e.Hostname, "no username")
						warned++
						continue
					}
					printPass("Device: "+e.Hostname, e.Driver)
					passed++
				}
			}

			// 4. SSH host key verification
			if kh := cfg.Drivers.SSH.KnownHostsFile; kh == "" {
				printWarn("Known hosts", "drivers.ssh.knownHostsFile not set, host keys are not verified")
				warned++
			} else if _, err := os.Stat(kh); err != nil {
				printFail("Known hosts", err.Error())
				failed++
			} else {
				printPass("Known hosts", kh)
				passed++
			}

			// 5. Audit journal writable
			if cfg.Audit.Enabled {
				if err := checkDatabase(cfg.Audit.DBPath); err != nil {
					printFail("Audit journal", err.Error())
					failed++
				} else {
					printPass("Audit journal", cfg.Audit.DBPath)
					passed++
				}
			}

			// 6. Listen addresses
			if cfg.MCP.Transport == "http" {
				if err := checkPort(cfg.MCP.Listen); err != nil {
					printWarn("MCP listen", fmt.Sprintf("%s may be in use: %v", cfg.MCP.Listen, err))
					warned++
				} else {
					printPass("MCP listen", cfg.MCP.Listen+" available")
					passed++
				}
				if cfg.MCP.AuthToken == "" {
					printWarn("MCP auth", "mcp.authToken not set, the http transport is unauthenticated")
					warned++
				}
			}
			if cfg.Metrics.Enabled {
				if err := checkPort(cfg.Metrics.Listen); err != nil {
					printWarn("Metrics listen", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Listen, err))
					warned++
				} else {
					printPass("Metrics listen", cfg.Metrics.Listen+" available")
					passed++
				}
			}

			// 7. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running netmcp.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nnetmcp should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! netmcp is ready to serve.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
