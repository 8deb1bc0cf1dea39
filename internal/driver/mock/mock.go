// Package mock is a fixture-backed device driver for labs and tests. Each
// device reads its answers from the YAML file named by optional_args.path.
package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"netmcp/internal/domain"

	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk layout of a mock device.
type Fixture struct {
	Facts         map[string]any            `yaml:"facts"`
	Interfaces    map[string]any            `yaml:"interfaces"`
	InterfacesIP  map[string]any            `yaml:"interfaces_ip"`
	BGPNeighbors  map[string]any            `yaml:"bgp_neighbors"`
	LLDPNeighbors map[string]any            `yaml:"lldp_neighbors"`
	Ping          map[string]map[string]any `yaml:"ping"`
	Traceroute    map[string]map[string]any `yaml:"traceroute"`
	CLI           map[string]string         `yaml:"cli"`
}

type Device struct {
	hostname string
	path     string

	mu      sync.Mutex
	fixture *Fixture
}

var _ domain.Device = (*Device)(nil)

// New has the driver.Constructor shape.
func New(hostname string, _ domain.Credentials, opts map[string]string) (domain.Device, error) {
	path := opts["path"]
	if path == "" {
		return nil, fmt.Errorf("%w: mock driver for %s needs optional_args.path", domain.ErrInvalidArgument, hostname)
	}
	return &Device{hostname: hostname, path: path}, nil
}

func (d *Device) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse fixture %s: %w", d.path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.fixture = &f
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fixture = nil
	return nil
}

func (d *Device) loaded(ctx context.Context) (*Fixture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fixture == nil {
		return nil, fmt.Errorf("mock device %s is not open", d.hostname)
	}
	return d.fixture, nil
}

func section(ctx context.Context, d *Device, pick func(*Fixture) map[string]any) (map[string]any, error) {
	f, err := d.loaded(ctx)
	if err != nil {
		return nil, err
	}
	v := pick(f)
	if v == nil {
		return nil, domain.ErrNotImplemented
	}
	return v, nil
}

func (d *Device) Facts(ctx context.Context) (map[string]any, error) {
	return section(ctx, d, func(f *Fixture) map[string]any { return f.Facts })
}

func (d *Device) Interfaces(ctx context.Context) (map[string]any, error) {
	return section(ctx, d, func(f *Fixture) map[string]any { return f.Interfaces })
}

func (d *Device) InterfacesIP(ctx context.Context) (map[string]any, error) {
	return section(ctx, d, func(f *Fixture) map[string]any { return f.InterfacesIP })
}

func (d *Device) BGPNeighbors(ctx context.Context) (map[string]any, error) {
	return section(ctx, d, func(f *Fixture) map[string]any { return f.BGPNeighbors })
}

func (d *Device) LLDPNeighbors(ctx context.Context) (map[string]any, error) {
	return section(ctx, d, func(f *Fixture) map[string]any { return f.LLDPNeighbors })
}

func perDestination(ctx context.Context, d *Device, pick func(*Fixture) map[string]map[string]any, dest string) (map[string]any, error) {
	f, err := d.loaded(ctx)
	if err != nil {
		return nil, err
	}
	byDest := pick(f)
	if byDest == nil {
		return nil, domain.ErrNotImplemented
	}
	if v, ok := byDest[dest]; ok {
		return v, nil
	}
	return map[string]any{"error": fmt.Sprintf("unknown host %s", dest)}, nil
}

func (d *Device) Ping(ctx context.Context, destination string) (map[string]any, error) {
	return perDestination(ctx, d, func(f *Fixture) map[string]map[string]any { return f.Ping }, destination)
}

func (d *Device) Traceroute(ctx context.Context, destination string) (map[string]any, error) {
	return perDestination(ctx, d, func(f *Fixture) map[string]map[string]any { return f.Traceroute }, destination)
}

// CLI answers commands present in the fixture. A fixture with an empty cli
// section returns an empty result.
func (d *Device) CLI(ctx context.Context, commands []string) (map[string]string, error) {
	f, err := d.loaded(ctx)
	if err != nil {
		return nil, err
	}
	if f.CLI == nil {
		return nil, domain.ErrNotImplemented
	}
	if len(f.CLI) == 0 {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(commands))
	for _, c := range commands {
		text, ok := f.CLI[c]
		if !ok {
			return nil, fmt.Errorf("%% invalid command %q", c)
		}
		out[c] = text
	}
	return out, nil
}
