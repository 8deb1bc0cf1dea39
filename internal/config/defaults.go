package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Inventory: InventoryConfig{
			Path: "inventory.yaml",
		},
		Session: SessionConfig{
			TimeoutSeconds:        60,
			ConnectTimeoutSeconds: 10,
		},
		Drivers: DriversConfig{
			SSH: SSHConfig{
				Port: 22,
			},
			SNMP: SNMPConfig{
				Port:           161,
				Community:      "public",
				Version:        "2c",
				TimeoutSeconds: 5,
				Retries:        1,
			},
		},
		Security: SecurityConfig{
			DefaultPolicy: "allow",
			Blacklist:     defaultBlacklist(),
			Whitelist:     defaultWhitelist(),
			AuditLog:      true,
		},
		Audit: AuditConfig{
			Enabled: false,
			DBPath:  "~/.netmcp/audit.db",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
		MCP: MCPConfig{
			Name:      "netmcp",
			Transport: "stdio",
			Listen:    "127.0.0.1:8808",
		},
	}
}

// defaultBlacklist blocks commands that change device state or drop sessions.
func defaultBlacklist() []string {
	return []string{
		"(?i)^\\s*reload(\\s|$)",
		"(?i)^\\s*conf(igure)?(\\s|$)",
		"(?i)^\\s*(write|wr)(\\s|$)",
		"(?i)^\\s*copy\\s",
		"(?i)^\\s*(erase|delete|format)\\s",
		"(?i)^\\s*request\\s+system(\\s|$)",
		"(?i)^\\s*(clear|debug|undebug)\\s",
		"(?i)^\\s*(commit|rollback)(\\s|$)",
	}
}

func defaultWhitelist() []string {
	return []string{
		"(?i)^\\s*show\\s",
		"(?i)^\\s*display\\s",
	}
}
