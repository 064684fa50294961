// Package mirror forwards finished cycle records to optional secondary sinks.
// Mirrors are best effort: a failure is logged and counted, never retried.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"irrigation-node/internal/journal"
	"irrigation-node/internal/metrics"
)

// Mirror is one secondary sink.
type Mirror interface {
	Name() string
	Publish(ctx context.Context, c journal.Cycle) error
	Close() error
}

// Set publishes each cycle to every configured mirror in turn.
type Set struct {
	mirrors []Mirror
	timeout time.Duration
	rec     metrics.Recorder
}

func NewSet(timeout time.Duration, rec metrics.Recorder, mirrors ...Mirror) *Set {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Set{mirrors: mirrors, timeout: timeout, rec: rec}
}

func (s *Set) Len() int { return len(s.mirrors) }

// Publish sends c to every mirror, each bounded by the set's timeout.
func (s *Set) Publish(ctx context.Context, c journal.Cycle) {
	for _, m := range s.mirrors {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := m.Publish(pctx, c)
		cancel()
		s.rec.IncMirror(m.Name(), err == nil)
		if err != nil {
			slog.Warn("mirror publish failed", "mirror", m.Name(), "error", err)
			continue
		}
		slog.Debug("mirror published", "mirror", m.Name(), "cycle_id", c.ID)
	}
}

func (s *Set) Close() error {
	var errs []error
	for _, m := range s.mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
