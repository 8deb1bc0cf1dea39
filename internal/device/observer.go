package device

import (
	"context"

	"netmcp/internal/domain"
)

// Observer is told about cache lookups, session lifetimes and finished
// invocations. Metrics and the audit journal implement it.
type Observer interface {
	Resolved(hostname string, cached bool)
	SessionOpened(hostname string)
	SessionClosed(hostname string)
	Completed(ctx context.Context, inv domain.Invocation)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) Resolved(string, bool)                        {}
func (NopObserver) SessionOpened(string)                         {}
func (NopObserver) SessionClosed(string)                         {}
func (NopObserver) Completed(context.Context, domain.Invocation) {}

// Observers fans each event out to every member.
type Observers []Observer

func (o Observers) Resolved(hostname string, cached bool) {
	for _, x := range o {
		x.Resolved(hostname, cached)
	}
}

func (o Observers) SessionOpened(hostname string) {
	for _, x := range o {
		x.SessionOpened(hostname)
	}
}

func (o Observers) SessionClosed(hostname string) {
	for _, x := range o {
		x.SessionClosed(hostname)
	}
}

func (o Observers) Completed(ctx context.Context, inv domain.Invocation) {
	for _, x := range o {
		x.Completed(ctx, inv)
	}
}
