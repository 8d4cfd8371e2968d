package userdata

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/schedpulse/schedpulse/internal/metrics"
)

// RemoteSource fetches the attendee's user data from the backend.
type RemoteSource interface {
	FetchUserData(ctx context.Context) (*domain.UserData, error)
}

// PendingChecker reports queued offline mutations. While mutations are
// pending, the local view is legitimately ahead of the remote store and must
// not be clobbered.
type PendingChecker interface {
	Pending() ([]domain.QueuedMutation, error)
}

// Reconciler periodically checks for drift between the local user-data view
// and the remote store, adopting the remote state when they disagree.
type Reconciler struct {
	local     domain.UserDataStore
	remote    RemoteSource
	pending   PendingChecker
	publisher domain.UpdatePublisher
	interval  time.Duration
	clock     clockwork.Clock
	stopCh    chan struct{}
}

// NewReconciler creates the reconciliation background job. publisher may be
// nil if no UI clients need change events.
func NewReconciler(local domain.UserDataStore, remote RemoteSource, pending PendingChecker, publisher domain.UpdatePublisher, clock clockwork.Clock, interval time.Duration) *Reconciler {
	return &Reconciler{
		local:     local,
		remote:    remote,
		pending:   pending,
		publisher: publisher,
		interval:  interval,
		clock:     clock,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the reconciliation loop until Stop is called or ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := r.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "User data reconciliation failed", "error", err)
				metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
			}
		case <-r.stopCh:
			slog.Info("User data reconciler stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop gracefully stops the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Reconcile runs one comparison pass. The remote store is the source of truth
// unless offline mutations are still queued.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if r.pending != nil {
		pending, err := r.pending.Pending()
		if err == nil && len(pending) > 0 {
			slog.DebugContext(ctx, "Skipping reconciliation, offline mutations pending", "pending", len(pending))
			metrics.ReconcileRunsTotal.WithLabelValues("clean").Inc()
			return nil
		}
	}

	remote, err := r.remote.FetchUserData(ctx)
	if err != nil {
		return err
	}

	local, err := r.local.Snapshot()
	if err != nil {
		return err
	}

	if equalUserData(local, *remote) {
		metrics.ReconcileRunsTotal.WithLabelValues("clean").Inc()
		return nil
	}

	slog.WarnContext(ctx, "User data drift detected, adopting remote state",
		"local_bookmarks", len(local.BookmarkedSessions),
		"remote_bookmarks", len(remote.BookmarkedSessions),
		"local_surveys", len(local.SubmittedSurveys),
		"remote_surveys", len(remote.SubmittedSurveys))
	metrics.UserDataDriftDetected.Inc()

	if err := r.local.ReplaceAll(*remote); err != nil {
		return err
	}
	metrics.UserDataDriftFixed.Inc()
	metrics.ReconcileRunsTotal.WithLabelValues("drift").Inc()

	if r.publisher != nil {
		r.publisher.PublishUserData(*remote)
	}
	return nil
}

func equalUserData(a, b domain.UserData) bool {
	return equalSets(a.BookmarkedSessions, b.BookmarkedSessions) &&
		equalSets(a.SubmittedSurveys, b.SubmittedSurveys)
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
