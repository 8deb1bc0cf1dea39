package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration for netmcp.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Inventory InventoryConfig `json:"inventory"`
	Session   SessionConfig   `json:"session"`
	Drivers   DriversConfig   `json:"drivers"`
	Security  SecurityConfig  `json:"security"`
	Audit     AuditConfig     `json:"audit"`
	Metrics   MetricsConfig   `json:"metrics"`
	MCP       MCPConfig       `json:"mcp"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// InventoryConfig names the inventory file. NETMCP_INVENTORY_FILENAME
// overrides Path; relative paths resolve against the executable directory.
type InventoryConfig struct {
	Path string `json:"path"`
}

type SessionConfig struct {
	TimeoutSeconds        int `json:"timeoutSeconds"` // 0 = no limit
	ConnectTimeoutSeconds int `json:"connectTimeoutSeconds"`
}

func (s SessionConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SessionConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

type DriversConfig struct {
	SSH  SSHConfig  `json:"ssh"`
	SNMP SNMPConfig `json:"snmp"`
}

type SSHConfig struct {
	Port           int    `json:"port"`
	KnownHostsFile string `json:"knownHostsFile,omitempty"` // empty = host keys not verified
}

type SNMPConfig struct {
	Port           int    `json:"port"`
	Community      string `json:"community"`
	Version        string `json:"version"` // "2c" | "3"
	TimeoutSeconds int    `json:"timeoutSeconds"`
	Retries        int    `json:"retries"`
}

// SecurityConfig is the run_command policy.
type SecurityConfig struct {
	DefaultPolicy string   `json:"defaultPolicy"` // "allow" | "deny"
	Blacklist     []string `json:"blacklist"`
	Whitelist     []string `json:"whitelist"`
	AuditLog      bool     `json:"auditLog"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Listen   string `json:"listen"`
	Endpoint string `json:"endpoint"`
}

type MCPConfig struct {
	Name      string `json:"name"`
	Transport string `json:"transport"` // "stdio" | "http"
	Listen    string `json:"listen"`
	AuthToken string `json:"authToken,omitempty"` // bearer token required on the http transport
}

// DefaultConfigDir returns the default config directory (~/.netmcp).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".netmcp"
	}
	return filepath.Join(home, ".netmcp")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.Drivers.SSH.KnownHostsFile = ExpandPath(cfg.Drivers.SSH.KnownHostsFile)
	cfg.Inventory.Path = ExpandPath(cfg.Inventory.Path)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Defaults()
		cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
		return cfg, nil
	}
	return cfg, err
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Session.TimeoutSeconds < 0 {
		errs = append(errs, "session.timeoutSeconds must be >= 0")
	}
	if cfg.Session.ConnectTimeoutSeconds < 1 {
		errs = append(errs, "session.connectTimeoutSeconds must be >= 1")
	}

	if cfg.Drivers.SSH.Port < 1 || cfg.Drivers.SSH.Port > 65535 {
		errs = append(errs, "drivers.ssh.port must be between 1 and 65535")
	}
	if cfg.Drivers.SNMP.Port < 1 || cfg.Drivers.SNMP.Port > 65535 {
		errs = append(errs, "drivers.snmp.port must be between 1 and 65535")
	}
	switch cfg.Drivers.SNMP.Version {
	case "2c", "3":
	default:
		errs = append(errs, "drivers.snmp.version must be one of: 2c, 3")
	}
	if cfg.Drivers.SNMP.TimeoutSeconds < 1 {
		errs = append(errs, "drivers.snmp.timeoutSeconds must be >= 1")
	}
	if cfg.Drivers.SNMP.Retries < 0 {
		errs = append(errs, "drivers.snmp.retries must be >= 0")
	}

	switch cfg.Security.DefaultPolicy {
	case "allow", "deny":
	default:
		errs = append(errs, "security.defaultPolicy must be one of: allow, deny")
	}

	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			errs = append(errs, "metrics.listen is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
			errs = append(errs, "metrics.endpoint must start with /")
		}
	}

	switch cfg.MCP.Transport {
	case "stdio":
	case "http":
		if cfg.MCP.Listen == "" {
			errs = append(errs, "mcp.listen is required for the http transport")
		}
	default:
		errs = append(errs, "mcp.transport must be one of: stdio, http")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
