// Package driver maps inventory driver kinds to device constructors.
package driver

import (
	"fmt"
	"sort"
	"sync"

	"netmcp/internal/domain"
	"netmcp/internal/driver/mock"
	"netmcp/internal/driver/netdev"
)

// Constructor builds an unopened device handle for one hostname.
type Constructor func(hostname string, creds domain.Credentials, opts map[string]string) (domain.Device, error)

// Registry holds the known driver kinds.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for kind.
func (r *Registry) Register(kind string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = c
}

func (r *Registry) Lookup(kind string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDriver, kind)
	}
	return c, nil
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewDefault registers every bundled driver: the SSH/SNMP kinds and mock.
func NewDefault(settings netdev.Settings) *Registry {
	r := NewRegistry()
	for _, kind := range netdev.Kinds() {
		r.Register(kind, netdev.New(kind, settings))
	}
	r.Register("mock", mock.New)
	return r
}
