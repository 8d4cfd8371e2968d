// Package schedule maintains the local view of the master conference schedule.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/schedpulse/schedpulse/internal/domain"
	apperrors "github.com/schedpulse/schedpulse/internal/errors"
	"github.com/schedpulse/schedpulse/internal/metrics"
	"github.com/schedpulse/schedpulse/internal/retry"
)

// Source fetches the master schedule from the backend.
type Source interface {
	FetchSchedule(ctx context.Context) (*domain.Schedule, error)
}

var fetchPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Schedule fetch failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// Fetcher fetches the master schedule, caches it, and refreshes it
// periodically. Consumers block in Schedule until the first successful fetch.
type Fetcher struct {
	source  Source
	clock   clockwork.Clock
	refresh time.Duration

	ready *ReadyCell[struct{}]
	group singleflight.Group

	mu      sync.RWMutex
	current *domain.Schedule
}

// NewFetcher creates a schedule fetcher refreshing every refresh interval.
func NewFetcher(source Source, clock clockwork.Clock, refresh time.Duration) *Fetcher {
	return &Fetcher{
		source:  source,
		clock:   clock,
		refresh: refresh,
		ready:   NewReadyCell[struct{}](),
	}
}

// Run fetches the schedule, marks the fetcher ready on first success, and
// keeps refreshing until ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context) {
	if err := f.Refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial schedule fetch failed", "error", err)
	}

	ticker := f.clock.NewTicker(f.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := f.Refresh(ctx); err != nil {
				slog.WarnContext(ctx, "Schedule refresh failed, keeping cached copy", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Refresh fetches the schedule now. Concurrent refreshes collapse into one
// backend call.
func (f *Fetcher) Refresh(ctx context.Context) error {
	_, err, _ := f.group.Do("schedule", func() (any, error) {
		schedule, err := retry.Do(ctx, fetchPolicy, classifyFetch, func() (*domain.Schedule, error) {
			return f.source.FetchSchedule(ctx)
		})
		if err != nil {
			metrics.ScheduleFetchesTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.ScheduleFetchesTotal.WithLabelValues("success").Inc()
		metrics.ScheduleSessions.Set(float64(len(schedule.Sessions)))

		f.mu.Lock()
		f.current = schedule
		f.mu.Unlock()
		f.ready.Set(struct{}{})
		return nil, nil
	})
	return err
}

// Schedule returns the cached master schedule, blocking until the first fetch
// has completed or ctx is done.
func (f *Fetcher) Schedule(ctx context.Context) (*domain.Schedule, error) {
	if _, err := f.ready.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeUnavailable, "schedule not loaded yet", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current, nil
}

// Session looks up a single session by ID in the cached schedule.
func (f *Fetcher) Session(ctx context.Context, id string) (*domain.Session, error) {
	schedule, err := f.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	for i := range schedule.Sessions {
		if schedule.Sessions[i].ID == id {
			return &schedule.Sessions[i], nil
		}
	}
	return nil, apperrors.New(apperrors.TypeNotFound, "unknown session")
}

// Ready reports whether a schedule has been fetched at least once.
func (f *Fetcher) Ready() bool {
	return f.ready.Ready()
}

func classifyFetch(err error) retry.Action {
	// Auth and validation failures will not heal by retrying.
	if apperrors.IsType(err, apperrors.TypeUnauthorized) || apperrors.IsType(err, apperrors.TypeValidation) {
		return retry.Stop
	}
	return retry.Retry
}
