package offline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/schedpulse/schedpulse/internal/metrics"
)

const (
	// updatedMessage matches the toast the web client shows after a drain.
	updatedMessage = "My Schedule was updated with offline changes."
	failedMessage  = "Offline changes could not be applied. They will be retried later."
)

// Outcome is the per-entry result of one replay attempt.
type Outcome struct {
	Mutation domain.QueuedMutation
	Err      error
}

// Result aggregates one replayer invocation. Callers that want a stricter
// notification policy than the default (success toast whenever anything was
// attempted) can inspect Failed.
type Result struct {
	Attempted int
	Replayed  []domain.QueuedMutation
	Failed    []Outcome
}

// Replayer re-issues queued offline mutations against the backend.
type Replayer struct {
	queue     *Manager
	requester domain.Requester
	notifier  domain.Notifier
}

// NewReplayer creates a replayer over the given queue.
func NewReplayer(queue *Manager, requester domain.Requester, notifier domain.Notifier) *Replayer {
	return &Replayer{
		queue:     queue,
		requester: requester,
		notifier:  notifier,
	}
}

// Replay drains the offline queue: every stored entry is re-issued as an
// authenticated request with no payload, all entries concurrently. Successful
// entries are removed; failed entries stay queued for the next invocation.
// At most one toast is shown per invocation: a failure toast when the store
// itself cannot be read, a success summary when at least one entry was
// attempted, nothing otherwise.
//
// Expected to run once per session, after sign-in completes. An overlapping
// invocation is harmless: both would replay the same entries and delete-of-a
// missing key is a no-op.
func (r *Replayer) Replay(ctx context.Context) (Result, error) {
	if !r.queue.Supported() {
		metrics.ReplayInvocationsTotal.WithLabelValues("unsupported").Inc()
		return Result{}, nil
	}

	start := time.Now()
	defer func() { metrics.ReplayDuration.Observe(time.Since(start).Seconds()) }()

	// Hold the store for the whole invocation: a concurrent Destroy (sign-out
	// during replay) waits instead of closing the store under our feet.
	q, err := r.queue.acquire()
	if err == nil {
		defer r.queue.release()
		var muts []domain.QueuedMutation
		muts, err = q.entries()
		if err == nil {
			return r.replayAll(ctx, q, muts), nil
		}
	}

	// StoreUnavailable: terminal for this invocation only, nothing drained.
	slog.ErrorContext(ctx, "Offline queue could not be opened", "error", err)
	metrics.ReplayInvocationsTotal.WithLabelValues("store_error").Inc()
	r.notifier.ShowMessage(failedMessage)
	return Result{}, err
}

func (r *Replayer) replayAll(ctx context.Context, q *queue, muts []domain.QueuedMutation) Result {
	if len(muts) == 0 {
		metrics.ReplayInvocationsTotal.WithLabelValues("empty").Inc()
		return Result{}
	}

	result := Result{Attempted: len(muts)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, m := range muts {
		wg.Add(1)
		go func(m domain.QueuedMutation) {
			defer wg.Done()
			err := r.requester.Send(ctx, m.Method, m.URL, true)
			if err != nil {
				slog.WarnContext(ctx, "Offline mutation replay failed, retaining entry",
					"method", m.Method, "url", m.URL, "error", err)
				metrics.ReplayAttemptsTotal.WithLabelValues("failure").Inc()
				mu.Lock()
				result.Failed = append(result.Failed, Outcome{Mutation: m, Err: err})
				mu.Unlock()
				return
			}
			if err := q.delete(m.URL); err != nil {
				// Request went through; a stale entry just means one extra
				// replay next time.
				slog.WarnContext(ctx, "Failed to remove replayed entry", "url", m.URL, "error", err)
			}
			metrics.ReplayAttemptsTotal.WithLabelValues("success").Inc()
			mu.Lock()
			result.Replayed = append(result.Replayed, m)
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	r.queue.observeDepth(q)

	if len(result.Failed) == 0 {
		metrics.ReplayInvocationsTotal.WithLabelValues("drained").Inc()
	} else {
		metrics.ReplayInvocationsTotal.WithLabelValues("partial").Inc()
	}

	// One summary toast whenever anything was attempted, even if some entries
	// failed; failed entries are already retained for the next invocation.
	r.notifier.ShowMessage(updatedMessage)

	slog.InfoContext(ctx, "Offline queue replay finished",
		"attempted", result.Attempted,
		"replayed", len(result.Replayed),
		"failed", len(result.Failed))
	return result
}

// IsStoreUnavailable reports whether err came from a failed store open/read.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
