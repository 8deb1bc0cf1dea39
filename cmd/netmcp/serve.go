package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"netmcp/internal/audit"
	"netmcp/internal/config"
	"netmcp/internal/device"
	"netmcp/internal/driver"
	"netmcp/internal/driver/netdev"
	"netmcp/internal/inventory"
	"netmcp/internal/mcp"
	"netmcp/internal/metrics"
	"netmcp/internal/security"
	"netmcp/internal/tool"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// stack is everything a tool call needs, built once from the config.
type stack struct {
	inventoryPath string
	registry      *tool.Registry
	metrics       *metrics.Collector
	audit         *audit.Store
}

func (s *stack) Close() error {
	return s.audit.Close()
}

func inventoryPath(cfg *config.Config) string {
	return inventory.ResolvePath(inventory.Filename(cfg.Inventory.Path), inventory.ExecutableDir())
}

func driverSettings(cfg *config.Config) netdev.Settings {
	return netdev.Settings{
		SSHPort:        cfg.Drivers.SSH.Port,
		KnownHostsFile: cfg.Drivers.SSH.KnownHostsFile,
		ConnectTimeout: cfg.Session.ConnectTimeout(),
		SNMPPort:       cfg.Drivers.SNMP.Port,
		SNMPCommunity:  cfg.Drivers.SNMP.Community,
		SNMPVersion:    cfg.Drivers.SNMP.Version,
		SNMPTimeout:    time.Duration(cfg.Drivers.SNMP.TimeoutSeconds) * time.Second,
		SNMPRetries:    cfg.Drivers.SNMP.Retries,
		Logger:         logger,
	}
}

func buildStack(cfg *config.Config) (*stack, error) {
	s := &stack{inventoryPath: inventoryPath(cfg)}

	observers := device.Observers{}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewCollector()
		observers = append(observers, s.metrics)
	}
	if cfg.Audit.Enabled {
		store, err := audit.NewStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("audit store: %w", err)
		}
		s.audit = store
		observers = append(observers, store)
	}

	var auditLogger security.AuditLogger
	if s.audit != nil {
		auditLogger = s.audit
	}
	policy, err := security.NewEngine(cfg.Security, auditLogger, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("security engine: %w", err)
	}

	dispatcher := device.NewDispatcher(
		inventory.NewFileResolver(s.inventoryPath, logger),
		driver.NewDefault(driverSettings(cfg)),
		device.Options{
			Timeout:  cfg.Session.Timeout(),
			Logger:   logger,
			Observer: observers,
		},
	)

	s.registry = tool.NewRegistry(logger)
	tool.RegisterDeviceTools(s.registry, dispatcher, policy)

	logger.Info("stack ready",
		"inventory", s.inventoryPath,
		"tools", len(s.registry.Names()),
		"metrics", cfg.Metrics.Enabled,
		"audit", cfg.Audit.Enabled,
	)
	return s, nil
}

func serveCmd() *cobra.Command {
	var transport, listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the device tools over MCP (stdio or streamable HTTP)",
		Long: `Starts the MCP server. With the stdio transport a single client talks
over stdin/stdout; with the http transport clients connect to the listen
address. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			if transport != "" {
				cfg.MCP.Transport = transport
			}
			if listen != "" {
				cfg.MCP.Listen = listen
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "stdio or http (default from config)")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address for the http transport")
	return cmd
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	server := mcp.NewServer(st.registry, mcp.Options{
		Name:      cfg.MCP.Name,
		Version:   version,
		AuthToken: cfg.MCP.AuthToken,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	if st.metrics != nil {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, st.metrics)
		})
	}
	g.Go(func() error {
		// The stdio session ending means the client went away; stop the
		// metrics listener with it.
		defer stop()
		if cfg.MCP.Transport == "http" {
			if cfg.MCP.AuthToken == "" {
				logger.Warn("http transport without mcp.authToken: any client that reaches the listener can run tools")
			}
			return server.ListenAndServe(gctx, cfg.MCP.Listen)
		}
		return server.ServeStdio(gctx)
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, mc config.MetricsConfig, collector *metrics.Collector) error {
	mux := http.NewServeMux()
	mux.Handle(mc.Endpoint, collector.Handler())

	srv := &http.Server{
		Addr:              mc.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", mc.Listen, "endpoint", mc.Endpoint)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call TOOL HOSTNAME [ARG]",
		Short: "Run one tool against one device and print the result",
		Long: `Runs a tool the same way an MCP client would. ARG is the destination for
ping and traceroute and the command for run_command.

  netmcp call get_facts core-rtr-01
  netmcp call ping core-rtr-01 192.0.2.9
  netmcp call run_command core-rtr-01 "show version"`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			st, err := buildStack(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			toolArgs, err := callArgs(st.registry, args[0], args[1], args[2:])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := st.registry.Execute(ctx, args[0], toolArgs)
			if err != nil {
				return err
			}
			switch v := result.(type) {
			case string:
				fmt.Println(v)
			default:
				data, _ := json.MarshalIndent(v, "", "  ")
				fmt.Println(string(data))
			}
			return nil
		},
	}
}

// callArgs maps positional arguments onto the tool's declared parameters:
// hostname first, then the remaining parameter, if the tool has one.
func callArgs(reg *tool.Registry, name, hostname string, rest []string) (map[string]any, error) {
	t := reg.Get(name)
	if t == nil {
		return nil, fmt.Errorf("unknown tool %q (available: %v)", name, reg.Names())
	}

	out := map[string]any{"hostname": hostname}
	props, _ := t.Parameters()["properties"].(map[string]any)
	var extra []string
	for key := range props {
		if key != "hostname" {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)

	switch {
	case len(extra) == 0 && len(rest) > 0:
		return nil, fmt.Errorf("%s takes no argument besides the hostname", name)
	case len(extra) > 0 && len(rest) == 0:
		return nil, fmt.Errorf("%s needs a %s argument", name, extra[0])
	case len(extra) > 0:
		out[extra[0]] = rest[0]
	}
	return out, nil
}
