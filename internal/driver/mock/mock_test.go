package mock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"netmcp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
facts:
  hostname: r1
  vendor: Cisco
  uptime: 3600
interfaces:
  Gi0/0:
    is_up: true
ping:
  10.0.0.2:
    success:
      probes_sent: 5
      packet_loss: 0
cli:
  show version: "IOS XR 7.9.1"
`

func openFixture(t *testing.T, body string) domain.Device {
	t.Helper()
	path := filepath.Join(t.TempDir(), "r1.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	dev, err := New("r1", domain.Credentials{}, map[string]string{"path": path})
	require.NoError(t, err)
	require.NoError(t, dev.Open(context.Background()))
	return dev
}

func TestMock_Getters(t *testing.T) {
	dev := openFixture(t, fixture)
	ctx := context.Background()

	facts, err := dev.Facts(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", facts["hostname"])
	assert.Equal(t, 3600, facts["uptime"])

	ifaces, err := dev.Interfaces(ctx)
	require.NoError(t, err)
	assert.Contains(t, ifaces, "Gi0/0")
}

func TestMock_MissingSectionNotImplemented(t *testing.T) {
	dev := openFixture(t, fixture)
	_, err := dev.BGPNeighbors(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotImplemented)

	_, err = dev.Traceroute(context.Background(), "10.0.0.2")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}

func TestMock_Ping(t *testing.T) {
	dev := openFixture(t, fixture)

	res, err := dev.Ping(context.Background(), "10.0.0.2")
	require.NoError(t, err)
	assert.Contains(t, res, "success")

	res, err = dev.Ping(context.Background(), "192.0.2.1")
	require.NoError(t, err)
	assert.Contains(t, res, "error")
}

func TestMock_CLI(t *testing.T) {
	dev := openFixture(t, fixture)

	out, err := dev.CLI(context.Background(), []string{"show version"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"show version": "IOS XR 7.9.1"}, out)

	_, err = dev.CLI(context.Background(), []string{"show bogus"})
	assert.Error(t, err)
}

func TestMock_CLIEmpty(t *testing.T) {
	dev := openFixture(t, "cli: {}\n")
	out, err := dev.CLI(context.Background(), []string{"show version"})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMock_OpenMissingFixture(t *testing.T) {
	dev, err := New("r1", domain.Credentials{}, map[string]string{"path": "/nonexistent/r1.yaml"})
	require.NoError(t, err)
	assert.Error(t, dev.Open(context.Background()))
}

func TestMock_NoPath(t *testing.T) {
	_, err := New("r1", domain.Credentials{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestMock_ClosedDevice(t *testing.T) {
	dev := openFixture(t, fixture)
	require.NoError(t, dev.Close())
	_, err := dev.Facts(context.Background())
	assert.Error(t, err)
}
