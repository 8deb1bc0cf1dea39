package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"netmcp/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "netmcp",
		Short: "netmcp: network device tools over MCP",
		Long: `netmcp exposes read-only network device operations (facts, interfaces,
neighbors, ping, traceroute, CLI commands) as Model Context Protocol tools.
Devices are looked up by hostname in a YAML inventory.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFiles()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.netmcp/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(callCmd())
	root.AddCommand(inventoryCmd())
	root.AddCommand(driversCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(serviceCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvFiles reads .env from the working directory and the config
// directory. Variables already set in the environment are kept.
func loadEnvFiles() {
	for _, path := range []string{".env", filepath.Join(config.DefaultConfigDir(), ".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("cannot load env file", "path", path, "err", err)
			continue
		}
		logger.Debug("loaded env file", "path", path)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to defaults when it does
// not exist, and reconfigures the global logger from it. The returned
// closer releases the log file, if any.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	closeLog, err := setupLogger(cfg.General)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// setupLogger writes to stderr, and to the log file as well when one is
// configured. Stdout is left alone: the stdio transport owns it.
func setupLogger(gc config.GeneralConfig) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(gc.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if gc.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(gc.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(gc.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { f.Close() }
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return closeFn, nil
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and an example inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}

			cfg := config.Defaults()
			cfg.Inventory.Path = filepath.Join(filepath.Dir(cfgPath), "inventory.yaml")
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)

			if _, err := os.Stat(cfg.Inventory.Path); err == nil {
				return nil
			}
			if err := os.WriteFile(cfg.Inventory.Path, []byte(exampleInventory), 0o600); err != nil {
				return fmt.Errorf("write inventory: %w", err)
			}
			logger.Info("example inventory written", "path", cfg.Inventory.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

const exampleInventory = `# Devices by hostname. The file holds plain-text credentials; keep it
# readable only by the user running netmcp.
#
# core-rtr-01:
#   driver: iosxr
#   username: netops
#   password: changeme
#   optional_args:
#     host: 192.0.2.1
#     port: "22"
#
# lab-r1:
#   driver: mock
#   username: lab
#   password: lab
#   optional_args:
#     path: /etc/netmcp/fixtures/lab-r1.yaml
`

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. session.timeoutSeconds)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. mcp.transport http)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			value := args[1]
			if strings.Contains(strings.ToLower(args[0]), "token") || strings.Contains(args[0], "community") {
				value = "***"
			}
			logger.Info("config updated", "path", args[0], "value", value, "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.ListPaths(config.Sanitize(cfg)), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("netmcp", version)
		},
	}
}
