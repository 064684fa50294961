package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Clock supplies the time cycles are stamped with.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Retention periodically deletes cycles older than the configured age.
type Retention struct {
	repo      Repository
	maxAge    time.Duration
	scheduler gocron.Scheduler
	clock     Clock
}

// NewRetention prunes against clock, which must be the clock the cycles are
// stamped with. A nil clock uses the system time.
func NewRetention(repo Repository, maxAge time.Duration, clock Clock) (*Retention, error) {
	if clock == nil {
		clock = systemClock{}
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create retention scheduler: %w", err)
	}
	return &Retention{repo: repo, maxAge: maxAge, scheduler: s, clock: clock}, nil
}

// Start prunes once immediately and then every interval until ctx ends or
// Stop is called.
func (r *Retention) Start(ctx context.Context, interval time.Duration) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { _, _ = r.Prune(ctx) }),
		gocron.WithName("journal-retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}
	r.scheduler.Start()
	slog.Info("journal retention started", "max_age", r.maxAge, "interval", interval)
	return nil
}

func (r *Retention) Stop() error {
	return r.scheduler.Shutdown()
}

// Prune deletes cycles that started before now minus the retention age.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	cutoff := r.clock.Now().Add(-r.maxAge)
	n, err := r.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		slog.Error("journal prune failed", "error", err)
		return 0, err
	}
	if n > 0 {
		slog.Info("journal pruned", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}
