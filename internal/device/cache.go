// Package device resolves hostnames to drivers, opens per-call device
// sessions and dispatches capabilities to them.
package device

import (
	"context"
	"fmt"
	"sync"

	"netmcp/internal/domain"
	"netmcp/internal/driver"

	"golang.org/x/sync/singleflight"
)

// Resolver looks up inventory entries.
type Resolver interface {
	Lookup(ctx context.Context, hostname string) (domain.InventoryEntry, error)
}

// DriverLookup maps a driver kind to its constructor.
type DriverLookup interface {
	Lookup(kind string) (driver.Constructor, error)
}

// ResolvedDevice is everything needed to open a session to one host. It is
// never mutated after it is published in the cache.
type ResolvedDevice struct {
	Hostname     string
	Kind         string
	Constructor  driver.Constructor
	Credentials  domain.Credentials
	OptionalArgs map[string]string
}

// Cache memoizes successful resolutions for the life of the process.
// Failures are returned to the caller and not remembered.
type Cache struct {
	resolver Resolver
	drivers  DriverLookup
	observer Observer

	mu      sync.RWMutex
	entries map[string]*ResolvedDevice
	group   singleflight.Group
}

func NewCache(resolver Resolver, drivers DriverLookup, observer Observer) *Cache {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Cache{
		resolver: resolver,
		drivers:  drivers,
		observer: observer,
		entries:  make(map[string]*ResolvedDevice),
	}
}

func (c *Cache) cached(hostname string) (*ResolvedDevice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rd, ok := c.entries[hostname]
	return rd, ok
}

// Resolve returns the cached device for hostname, resolving it on first use.
// Concurrent first calls for one hostname share a single lookup, which runs
// detached from any one caller's cancellation.
func (c *Cache) Resolve(ctx context.Context, hostname string) (*ResolvedDevice, error) {
	if rd, ok := c.cached(hostname); ok {
		c.observer.Resolved(hostname, true)
		return rd, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(hostname, func() (any, error) {
		if rd, ok := c.cached(hostname); ok {
			return rd, nil
		}
		rd, err := c.resolve(detached, hostname)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[hostname] = rd
		c.mu.Unlock()
		// One miss per inventory lookup, however many callers share it.
		c.observer.Resolved(hostname, false)
		return rd, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ResolvedDevice), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) resolve(ctx context.Context, hostname string) (*ResolvedDevice, error) {
	entry, err := c.resolver.Lookup(ctx, hostname)
	if err != nil {
		return nil, err
	}
	ctor, err := c.drivers.Lookup(entry.Driver)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", hostname, err)
	}
	return &ResolvedDevice{
		Hostname:     hostname,
		Kind:         entry.Driver,
		Constructor:  ctor,
		Credentials:  entry.Credentials(),
		OptionalArgs: entry.OptionalArgs,
	}, nil
}

// Len reports how many hostnames are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
