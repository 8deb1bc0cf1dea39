package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"netmcp/internal/config"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "io.netmcp.server"
	systemdUnit  = "netmcp.service"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run netmcp as a user service (launchd/systemd) on the http transport",
	}
	cmd.AddCommand(installServiceCmd(), uninstallServiceCmd())
	return cmd
}

func installServiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Write a launchd agent or systemd user unit for 'netmcp serve --transport http'",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := filepath.Abs(resolveConfigPath())
			if err != nil {
				return err
			}
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}

			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(execPath, cfgPath)
			case "linux":
				return installSystemd(execPath, cfgPath)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	}
}

func uninstallServiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the netmcp user service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := servicePath()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Printf("Service removed: %s\n", path)
			return nil
		},
	}
}

func servicePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", systemdUnit), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

// renderService fills a service template. The log paths are only used by
// the launchd template.
func renderService(tmpl, execPath, cfgPath string) string {
	logDir := filepath.Join(config.DefaultConfigDir(), "logs")
	return strings.NewReplacer(
		"{{EXEC}}", execPath,
		"{{CONFIG}}", cfgPath,
		"{{LABEL}}", launchdLabel,
		"{{LOG}}", filepath.Join(logDir, "netmcp.log"),
		"{{ERR_LOG}}", filepath.Join(logDir, "netmcp-error.log"),
	).Replace(tmpl)
}

func writeService(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func installLaunchd(execPath, cfgPath string) error {
	path, err := servicePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(config.DefaultConfigDir(), "logs"), 0o755); err != nil {
		return err
	}
	if err := writeService(path, renderService(launchdTemplate, execPath, cfgPath)); err != nil {
		return err
	}

	fmt.Printf("Service installed: %s\n", path)
	fmt.Printf("To start: launchctl load %s\n", path)
	fmt.Printf("To stop:  launchctl unload %s\n", path)
	return nil
}

func installSystemd(execPath, cfgPath string) error {
	path, err := servicePath()
	if err != nil {
		return err
	}
	if err := writeService(path, renderService(systemdTemplate, execPath, cfgPath)); err != nil {
		return err
	}

	fmt.Printf("Service installed: %s\n", path)
	fmt.Printf("To start:  systemctl --user start netmcp\n")
	fmt.Printf("To enable: systemctl --user enable netmcp\n")
	fmt.Printf("To stop:   systemctl --user stop netmcp\n")
	return nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--transport</string>
        <string>http</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=netmcp network device MCP server
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} serve --transport http --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
