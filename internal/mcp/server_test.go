package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"netmcp/internal/config"
	"netmcp/internal/device"
	"netmcp/internal/driver"
	"netmcp/internal/driver/netdev"
	"netmcp/internal/inventory"
	"netmcp/internal/security"
	"netmcp/internal/tool"
	"netmcp/internal/toon"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
facts:
  hostname: r1
  vendor: Cisco
  os_version: "7.3.2"
  uptime: 3600
cli:
  show clock: "12:00:00.000 UTC Mon Mar 2 2026"
ping:
  10.0.0.2:
    success:
      probes_sent: 5
      packet_loss: 0
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stack wires inventory, drivers, dispatcher, policy and registry the way
// the serve command does, with one mock device r1.
func stack(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	fixture := filepath.Join(dir, "r1.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(fixtureYAML), 0o644))

	inv := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(inv, []byte(`
r1:
  driver: mock
  username: admin
  password: secret
  optional_args:
    path: `+fixture+`
r2:
  driver: iosxr
  username: admin
  password: secret
`), 0o644))

	logger := testLogger()
	dispatcher := device.NewDispatcher(
		inventory.NewFileResolver(inv, logger),
		driver.NewDefault(netdev.Settings{Logger: logger}),
		device.Options{Logger: logger},
	)
	policy, err := security.NewEngine(config.Defaults().Security, nil, logger)
	require.NoError(t, err)

	reg := tool.NewRegistry(logger)
	tool.RegisterDeviceTools(reg, dispatcher, policy)
	return NewServer(reg, Options{Name: "netmcp-test", Version: "test", Logger: logger})
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text, res.IsError
}

func TestServer_ListTools(t *testing.T) {
	cs := connect(t, stack(t))

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tl := range res.Tools {
		names = append(names, tl.Name)
		assert.NotEmpty(t, tl.Description, tl.Name)
		assert.NotNil(t, tl.InputSchema, tl.Name)
	}
	assert.ElementsMatch(t, []string{
		"get_device_os", "get_facts", "get_interfaces", "get_interfaces_ip",
		"get_bgp_neighbors", "get_lldp_neighbors", "ping", "traceroute", "run_command",
	}, names)
}

func TestServer_GetDeviceOS(t *testing.T) {
	cs := connect(t, stack(t))

	text, isErr := callText(t, cs, "get_device_os", map[string]any{"hostname": "r2"})
	assert.False(t, isErr)
	assert.Equal(t, "iosxr", text)
}

func TestServer_GetFacts(t *testing.T) {
	cs := connect(t, stack(t))

	text, isErr := callText(t, cs, "get_facts", map[string]any{"hostname": "r1"})
	require.False(t, isErr, text)

	want, err := toon.Encode(map[string]any{
		"hostname":   "r1",
		"vendor":     "Cisco",
		"os_version": "7.3.2",
		"uptime":     3600,
	})
	require.NoError(t, err)
	assert.Equal(t, want, text)
}

func TestServer_Ping(t *testing.T) {
	cs := connect(t, stack(t))

	text, isErr := callText(t, cs, "ping", map[string]any{"hostname": "r1", "destination": "10.0.0.2"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "probes_sent")
}

func TestServer_RunCommand(t *testing.T) {
	cs := connect(t, stack(t))

	text, isErr := callText(t, cs, "run_command", map[string]any{"hostname": "r1", "command": "show clock"})
	require.False(t, isErr, text)
	want, err := toon.Encode(map[string]string{"show clock": "12:00:00.000 UTC Mon Mar 2 2026"})
	require.NoError(t, err)
	assert.Equal(t, want, text)
}

func TestServer_RunCommandRejected(t *testing.T) {
	cs := connect(t, stack(t))

	text, isErr := callText(t, cs, "run_command", map[string]any{"hostname": "r1", "command": "reload"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "command_rejected:"), text)
}

func TestServer_UnknownHost(t *testing.T) {
	cs := connect(t, stack(t))

	for _, name := range []string{"get_device_os", "get_facts", "get_interfaces"} {
		text, isErr := callText(t, cs, name, map[string]any{"hostname": "nope"})
		assert.True(t, isErr, name)
		assert.True(t, strings.HasPrefix(text, "device_not_found:"), "%s: %s", name, text)
	}
}

func TestServer_MissingFixtureSection(t *testing.T) {
	cs := connect(t, stack(t))

	text, isErr := callText(t, cs, "get_bgp_neighbors", map[string]any{"hostname": "r1"})
	assert.True(t, isErr)
	assert.True(t, strings.HasPrefix(text, "unsupported_capability:"), text)
}

func TestServer_HandlerRequiresToken(t *testing.T) {
	s := stack(t)
	s.authToken = "s3cret"

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
}

func TestServer_HTTPTransport(t *testing.T) {
	s := stack(t)
	s.authToken = "s3cret"

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "http-client", Version: "test"}, nil)
	transport := &mcp.StreamableClientTransport{
		Endpoint:   srv.URL,
		HTTPClient: &http.Client{Transport: bearer{token: "s3cret"}},
	}
	cs, err := client.Connect(context.Background(), transport, nil)
	require.NoError(t, err)
	defer cs.Close()

	text, isErr := callText(t, cs, "get_device_os", map[string]any{"hostname": "r1"})
	assert.False(t, isErr)
	assert.Equal(t, "mock", text)
}

type bearer struct{ token string }

func (b bearer) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(r)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "plain", render("plain"))
	assert.Equal(t, "{}", render(map[string]string{}))
	assert.Equal(t, "null", render(nil))
}
