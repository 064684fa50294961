package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"irrigation-node/internal/journal"
)

// BreakerSettings control when a mirror is taken out of rotation.
type BreakerSettings struct {
	// ConsecutiveFailures that open the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker stays open before a trial publish.
	OpenFor time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 3, OpenFor: 5 * time.Minute}
}

// Breaker short-circuits a mirror that keeps failing so a dead sink does not
// add its timeout to every cycle.
type Breaker struct {
	inner Mirror
	cb    *gobreaker.CircuitBreaker
}

func WithBreaker(m Mirror, s BreakerSettings) *Breaker {
	fails := s.ConsecutiveFailures
	if fails == 0 {
		fails = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        m.Name(),
		MaxRequests: 1,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("mirror breaker state changed", "mirror", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{inner: m, cb: cb}
}

func (b *Breaker) Name() string { return b.inner.Name() }

// Publish returns gobreaker.ErrOpenState without calling the mirror while open.
func (b *Breaker) Publish(ctx context.Context, c journal.Cycle) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Publish(ctx, c)
	})
	return err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Close() error { return b.inner.Close() }
