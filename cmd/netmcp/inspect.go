package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"netmcp/internal/audit"
	"netmcp/internal/driver"
	"netmcp/internal/inventory"

	"github.com/spf13/cobra"
)

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect the device inventory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List inventory devices (credentials are not printed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			snap, err := inventory.Load(inventoryPath(cfg))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HOSTNAME\tDRIVER\tUSERNAME\tOPTIONAL ARGS")
			for _, e := range snap.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Hostname, e.Driver, e.Username, formatArgs(e.OptionalArgs))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d device(s) in %s\n", snap.Len(), snap.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the resolved inventory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()
			fmt.Println(inventoryPath(cfg))
			return nil
		},
	})

	return cmd
}

func formatArgs(args map[string]string) string {
	if len(args) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+args[k])
	}
	return strings.Join(parts, ",")
}

func driversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the driver kinds an inventory entry may name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			for _, kind := range driver.NewDefault(driverSettings(cfg)).Kinds() {
				fmt.Println(kind)
			}
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	var limit int
	var decisionsOnly, invocationsOnly bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent invocations and command policy decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			if !cfg.Audit.Enabled {
				logger.Warn("audit.enabled is false; showing what the journal holds from earlier runs")
			}
			if _, err := os.Stat(cfg.Audit.DBPath); err != nil {
				return fmt.Errorf("no audit journal at %s", cfg.Audit.DBPath)
			}

			store, err := audit.NewStore(cfg.Audit.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

			if !decisionsOnly {
				records, err := store.Recent(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "STARTED\tHOSTNAME\tCAPABILITY\tOUTCOME\tDURATION\tDETAIL")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.Started.Local().Format(time.DateTime), r.Hostname, r.Capability,
						r.Outcome, r.Duration.Round(time.Millisecond), r.Detail)
				}
				fmt.Fprintln(w)
			}

			if !invocationsOnly {
				decisions, err := store.RecentDecisions(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "CREATED\tHOSTNAME\tRESULT\tCOMMAND\tDETAILS")
				for _, d := range decisions {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						d.Created.Local().Format(time.DateTime), d.Hostname, d.Result, d.Command, d.Details)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows per table")
	cmd.Flags().BoolVar(&decisionsOnly, "decisions", false, "show only command policy decisions")
	cmd.Flags().BoolVar(&invocationsOnly, "invocations", false, "show only device invocations")
	cmd.MarkFlagsMutuallyExclusive("decisions", "invocations")
	return cmd
}
