package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"netmcp/internal/device"
	"netmcp/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ device.Observer = (*Collector)(nil)

func TestCollector_Completed(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	c.Completed(ctx, domain.Invocation{Capability: domain.CapFacts, Duration: 200 * time.Millisecond})
	c.Completed(ctx, domain.Invocation{Capability: domain.CapFacts, Duration: time.Second})
	c.Completed(ctx, domain.Invocation{
		Capability: domain.CapPing,
		Duration:   3 * time.Second,
		Err:        fmt.Errorf("%w: r1", domain.ErrConnection),
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.InvocationsTotal.WithLabelValues("facts", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.InvocationsTotal.WithLabelValues("ping", "connection")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.InvocationsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(c.InvocationDuration))
}

func TestCollector_Sessions(t *testing.T) {
	c := NewCollector()

	c.SessionOpened("r1")
	c.SessionOpened("r1")
	c.SessionOpened("r2")
	c.SessionClosed("r1")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.SessionsOpen.WithLabelValues("r1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SessionsOpen.WithLabelValues("r2")))
}

func TestCollector_CacheLookups(t *testing.T) {
	c := NewCollector()

	c.Resolved("r1", false)
	c.Resolved("r1", true)
	c.Resolved("r1", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookupsTotal.WithLabelValues("hit")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.Completed(context.Background(), domain.Invocation{Capability: domain.CapLLDPNeighbors, Duration: time.Second})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `netmcp_invocations_total{capability="lldp-neighbors",outcome="ok"} 1`)
	assert.Contains(t, string(body), "netmcp_invocation_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.Resolved("r1", true)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheLookupsTotal.WithLabelValues("hit")))
	assert.NotSame(t, a.Registry(), b.Registry())
}
