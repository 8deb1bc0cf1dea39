package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"netmcp/internal/domain"
)

// Sessions opens one device connection per call and always tears it down.
type Sessions struct {
	logger   *slog.Logger
	observer Observer
}

func NewSessions(logger *slog.Logger, observer Observer) *Sessions {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Sessions{logger: logger, observer: observer}
}

// With opens a session to rd and runs body with it. The device is closed
// exactly once when body returns, panics, or ctx is cancelled, whichever
// comes first. Cancellation closes the device immediately so blocked I/O
// returns. A close error is logged and never replaces body's error.
func (s *Sessions) With(ctx context.Context, rd *ResolvedDevice, body func(context.Context, domain.Device) error) error {
	dev, err := rd.Constructor(rd.Hostname, rd.Credentials, rd.OptionalArgs)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, rd.Hostname, err)
	}
	if err := dev.Open(ctx); err != nil {
		if cerr := dev.Close(); cerr != nil {
			s.logger.Debug("close after failed open", "hostname", rd.Hostname, "err", cerr)
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrConnection, rd.Hostname, err)
	}
	s.observer.SessionOpened(rd.Hostname)

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			if err := dev.Close(); err != nil {
				s.logger.Warn("device close failed", "hostname", rd.Hostname, "err", err)
			}
			s.observer.SessionClosed(rd.Hostname)
		})
	}
	stop := context.AfterFunc(ctx, teardown)
	defer func() {
		stop()
		teardown()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return body(ctx, dev)
}
