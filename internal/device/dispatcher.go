package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"netmcp/internal/domain"

	"github.com/google/uuid"
)

type Options struct {
	// Timeout bounds each invocation. Zero means no limit beyond the
	// caller's own deadline.
	Timeout  time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// Dispatcher runs one capability against one device per call.
type Dispatcher struct {
	resolver Resolver
	cache    *Cache
	sessions *Sessions
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
}

func NewDispatcher(resolver Resolver, drivers DriverLookup, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	return &Dispatcher{
		resolver: resolver,
		cache:    NewCache(resolver, drivers, opts.Observer),
		sessions: NewSessions(opts.Logger, opts.Observer),
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// Cache exposes the resolution cache.
func (d *Dispatcher) Cache() *Cache { return d.cache }

// Invoke resolves hostname, opens a session and runs capability with args.
// The result is the raw value the driver returned.
func (d *Dispatcher) Invoke(ctx context.Context, hostname string, capability domain.Capability, args ...string) (any, error) {
	inv := domain.Invocation{
		ID:         uuid.NewString(),
		Hostname:   hostname,
		Capability: capability,
		Started:    time.Now(),
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.invoke(ctx, hostname, capability, args)

	inv.Duration = time.Since(inv.Started)
	inv.Err = err
	d.observer.Completed(context.WithoutCancel(ctx), inv)

	if err != nil {
		d.logger.Warn("invocation failed", "id", inv.ID, "hostname", hostname, "capability", capability,
			"kind", domain.ErrorKind(err), "duration", inv.Duration, "err", err)
		return nil, err
	}
	d.logger.Info("invocation completed", "id", inv.ID, "hostname", hostname, "capability", capability,
		"duration", inv.Duration)
	return result, nil
}

func (d *Dispatcher) invoke(ctx context.Context, hostname string, capability domain.Capability, args []string) (any, error) {
	if _, err := domain.ParseCapability(string(capability)); err != nil {
		return nil, err
	}
	if err := checkArity(capability, args); err != nil {
		return nil, err
	}

	rd, err := d.cache.Resolve(ctx, hostname)
	if err != nil {
		return nil, err
	}

	var result any
	err = d.sessions.With(ctx, rd, func(ctx context.Context, dev domain.Device) error {
		r, err := call(ctx, dev, capability, args)
		if err != nil {
			return classify(rd, capability, err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkArity(capability domain.Capability, args []string) error {
	n := capability.Arity()
	if (n >= 0 && len(args) != n) || (n < 0 && len(args) == 0) {
		return fmt.Errorf("%w: %s takes %s, got %d", domain.ErrInvalidArgument, capability, arityText(n), len(args))
	}
	for _, a := range args {
		if a == "" {
			return fmt.Errorf("%w: %s: empty argument", domain.ErrInvalidArgument, capability)
		}
	}
	return nil
}

func arityText(n int) string {
	switch n {
	case 0:
		return "no arguments"
	case 1:
		return "one argument"
	default:
		return "one or more arguments"
	}
}

func call(ctx context.Context, dev domain.Device, capability domain.Capability, args []string) (any, error) {
	switch capability {
	case domain.CapFacts:
		return dev.Facts(ctx)
	case domain.CapInterfaces:
		return dev.Interfaces(ctx)
	case domain.CapInterfacesIP:
		return dev.InterfacesIP(ctx)
	case domain.CapBGPNeighbors:
		return dev.BGPNeighbors(ctx)
	case domain.CapLLDPNeighbors:
		return dev.LLDPNeighbors(ctx)
	case domain.CapPing:
		return dev.Ping(ctx, args[0])
	case domain.CapTraceroute:
		return dev.Traceroute(ctx, args[0])
	case domain.CapRunCommand:
		return dev.CLI(ctx, args)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedCapability, capability)
}

func classify(rd *ResolvedDevice, capability domain.Capability, err error) error {
	if errors.Is(err, domain.ErrNotImplemented) {
		return fmt.Errorf("%w: %s is not available for driver %s", domain.ErrUnsupportedCapability, capability, rd.Kind)
	}
	if errors.Is(err, domain.ErrUnsupportedCapability) {
		return err
	}
	return fmt.Errorf("%w: %s on %s: %w", domain.ErrCapabilityInvocation, capability, rd.Hostname, err)
}

// Resolve checks that hostname is in the inventory with a known driver,
// filling the cache as Invoke would. No session is opened.
func (d *Dispatcher) Resolve(ctx context.Context, hostname string) error {
	_, err := d.cache.Resolve(ctx, hostname)
	return err
}

// DeviceOS returns the driver kind recorded for hostname. It reads the
// inventory only and never connects to the device.
func (d *Dispatcher) DeviceOS(ctx context.Context, hostname string) (string, error) {
	entry, err := d.resolver.Lookup(ctx, hostname)
	if err != nil {
		return "", err
	}
	d.logger.Debug("device os", "hostname", hostname, "driver", entry.Driver)
	return entry.Driver, nil
}
