package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"netmcp/internal/config"
	"netmcp/internal/domain"
	"netmcp/internal/toon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("NETMCP_INVENTORY_FILENAME", "")
	dir := t.TempDir()

	fixture := filepath.Join(dir, "lab.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(`
facts:
  hostname: lab-r1
  vendor: Juniper
cli:
  show version: "JUNOS 23.4R1"
`), 0o644))

	inv := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(inv, []byte(`
lab-r1:
  driver: mock
  username: lab
  password: lab
  optional_args:
    path: `+fixture+`
`), 0o600))

	cfg := config.Defaults()
	cfg.Inventory.Path = inv
	cfg.Audit.Enabled = true
	cfg.Audit.DBPath = filepath.Join(dir, "audit.db")
	cfg.Metrics.Enabled = true
	return cfg
}

func TestBuildStack_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	st, err := buildStack(cfg)
	require.NoError(t, err)
	defer st.Close()

	require.NotNil(t, st.metrics)
	require.NotNil(t, st.audit)
	assert.Equal(t, cfg.Inventory.Path, st.inventoryPath)
	assert.Len(t, st.registry.Names(), 9)

	ctx := context.Background()
	got, err := st.registry.Execute(ctx, "get_facts", map[string]any{"hostname": "lab-r1"})
	require.NoError(t, err)
	want, err := toon.Encode(map[string]any{"hostname": "lab-r1", "vendor": "Juniper"})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = st.registry.Execute(ctx, "run_command", map[string]any{"hostname": "lab-r1", "command": "reload"})
	assert.ErrorIs(t, err, domain.ErrCommandRejected)

	records, err := st.audit.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "facts", records[0].Capability)

	decisions, err := st.audit.RecentDecisions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "reload", decisions[0].Command)
}

func TestBuildStack_UnknownHostBeatsPolicy(t *testing.T) {
	st, err := buildStack(testConfig(t))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, command := range []string{"reload", "show version"} {
		_, err := st.registry.Execute(ctx, "run_command", map[string]any{"hostname": "nope", "command": command})
		require.ErrorIs(t, err, domain.ErrDeviceNotFound, command)
		assert.Equal(t, "device_not_found", domain.ErrorKind(err))
	}

	decisions, err := st.audit.RecentDecisions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, decisions)

	out, err := st.registry.Execute(ctx, "run_command", map[string]any{"hostname": "lab-r1", "command": "show version"})
	require.NoError(t, err)
	assert.Contains(t, out, "JUNOS 23.4R1")
}

func TestBuildStack_AmbientOff(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = false
	cfg.Metrics.Enabled = false

	st, err := buildStack(cfg)
	require.NoError(t, err)
	assert.Nil(t, st.metrics)
	assert.Nil(t, st.audit)
	assert.NoError(t, st.Close())
}

func TestBuildStack_BadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.Blacklist = []string{"(unclosed"}

	_, err := buildStack(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security engine")
}

func TestCallArgs(t *testing.T) {
	st, err := buildStack(testConfig(t))
	require.NoError(t, err)
	defer st.Close()

	args, err := callArgs(st.registry, "get_facts", "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hostname": "r1"}, args)

	args, err = callArgs(st.registry, "ping", "r1", []string{"10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hostname": "r1", "destination": "10.0.0.1"}, args)

	args, err = callArgs(st.registry, "run_command", "r1", []string{"show version"})
	require.NoError(t, err)
	assert.Equal(t, "show version", args["command"])

	_, err = callArgs(st.registry, "get_facts", "r1", []string{"extra"})
	assert.Error(t, err)
	_, err = callArgs(st.registry, "traceroute", "r1", nil)
	assert.ErrorContains(t, err, "destination")
	_, err = callArgs(st.registry, "nope", "r1", nil)
	assert.ErrorContains(t, err, "unknown tool")
}

func TestDriverSettings(t *testing.T) {
	cfg := config.Defaults()
	cfg.Drivers.SSH.Port = 2222
	cfg.Drivers.SNMP.TimeoutSeconds = 3

	s := driverSettings(cfg)
	assert.Equal(t, 2222, s.SSHPort)
	assert.Equal(t, "2c", s.SNMPVersion)
	assert.Equal(t, cfg.Session.ConnectTimeout(), s.ConnectTimeout)
	assert.Equal(t, "3s", s.SNMPTimeout.String())
}

func TestInventoryPath_EnvOverride(t *testing.T) {
	cfg := config.Defaults()
	cfg.Inventory.Path = "/etc/netmcp/inventory.yaml"
	t.Setenv("NETMCP_INVENTORY_FILENAME", "/srv/lab.yaml")
	assert.Equal(t, "/srv/lab.yaml", inventoryPath(cfg))
}

func TestFormatArgs(t *testing.T) {
	assert.Equal(t, "-", formatArgs(nil))
	assert.Equal(t, "host=192.0.2.1,port=22", formatArgs(map[string]string{"port": "22", "host": "192.0.2.1"}))
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "netmcp.log")
	closeLog, err := setupLogger(config.GeneralConfig{LogLevel: "debug", LogFile: path})
	require.NoError(t, err)
	logger.Debug("hello from test")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestRenderService(t *testing.T) {
	unit := renderService(systemdTemplate, "/usr/local/bin/netmcp", "/etc/netmcp/config.json")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/netmcp serve --transport http --config /etc/netmcp/config.json")

	plist := renderService(launchdTemplate, "/opt/netmcp", "/cfg.json")
	assert.Contains(t, plist, "<string>"+launchdLabel+"</string>")
	assert.False(t, strings.Contains(plist, "{{"), "unreplaced placeholder")
}

func TestCheckDatabase(t *testing.T) {
	assert.NoError(t, checkDatabase(filepath.Join(t.TempDir(), "sub", "audit.db")))
}

func TestCheckPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	assert.Error(t, checkPort(ln.Addr().String()))
	assert.NoError(t, checkPort("127.0.0.1:0"))
}
