package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/schedpulse/schedpulse/internal/domain"
	apperrors "github.com/schedpulse/schedpulse/internal/errors"
	"github.com/schedpulse/schedpulse/internal/offline"
	"github.com/schedpulse/schedpulse/internal/remote"
)

const offlineMessage = "You're offline. Your change is saved and will sync when you reconnect."

// ScheduleView reads the master schedule, blocking until the first fetch.
type ScheduleView interface {
	Schedule(ctx context.Context) (*domain.Schedule, error)
	Session(ctx context.Context, id string) (*domain.Session, error)
}

// Service is the application layer — the only component that references
// multiple domain components. It orchestrates all use cases.
type Service struct {
	tokens   *TokenStore
	backend  domain.BackendClient
	local    domain.UserDataStore
	schedule ScheduleView
	queue    *offline.Manager
	replayer *offline.Replayer
	notifier domain.Notifier

	bg sync.WaitGroup
}

// NewService creates the application layer service.
func NewService(tokens *TokenStore, backend domain.BackendClient, local domain.UserDataStore, schedule ScheduleView, queue *offline.Manager, replayer *offline.Replayer, notifier domain.Notifier) *Service {
	return &Service{
		tokens:   tokens,
		backend:  backend,
		local:    local,
		schedule: schedule,
		queue:    queue,
		replayer: replayer,
		notifier: notifier,
	}
}

// SignIn verifies the attendee token, stores the credentials, adopts the
// remote user data, and kicks off the offline queue replay. Replay runs in
// the background: sign-in should not wait on queued mutations.
func (s *Service) SignIn(ctx context.Context, attendeeToken string) (string, error) {
	attendeeID, err := s.backend.VerifyToken(ctx, attendeeToken)
	if err != nil {
		return "", err
	}
	s.tokens.Set(attendeeToken, attendeeID)
	slog.InfoContext(ctx, "Attendee signed in", "attendee_id", attendeeID)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.afterSignIn(context.WithoutCancel(ctx))
	}()
	return attendeeID, nil
}

// Wait blocks until background work kicked off by sign-in has finished.
// Called during graceful shutdown.
func (s *Service) Wait() {
	s.bg.Wait()
}

func (s *Service) afterSignIn(ctx context.Context) {
	// Adopting the remote user-data view is left to the reconciler, which
	// waits until no queued mutations are pending.
	if _, err := s.replayer.Replay(ctx); err != nil {
		slog.ErrorContext(ctx, "Offline queue replay failed", "error", err)
	}
}

// SignOut clears the credentials, the local user-data view, and tears down
// the offline queue. A queue-teardown failure is propagated; there is no
// partial-delete state to reconcile.
func (s *Service) SignOut(ctx context.Context) error {
	s.tokens.Clear()
	if err := s.local.ReplaceAll(domain.UserData{}); err != nil {
		slog.WarnContext(ctx, "Could not clear local user data on sign-out", "error", err)
	}
	if err := s.queue.Destroy(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Attendee signed out")
	return nil
}

// SignedIn reports whether an attendee is signed in.
func (s *Service) SignedIn() bool {
	return s.tokens.SignedIn()
}

// Schedule returns the master schedule, blocking until the first fetch.
func (s *Service) Schedule(ctx context.Context) (*domain.Schedule, error) {
	return s.schedule.Schedule(ctx)
}

// Session returns one session of the master schedule.
func (s *Service) Session(ctx context.Context, id string) (*domain.Session, error) {
	return s.schedule.Session(ctx, id)
}

// UserData returns the local view of bookmarks and surveys.
func (s *Service) UserData(context.Context) (domain.UserData, error) {
	return s.local.Snapshot()
}

// SetBookmarked bookmarks or unbookmarks a session. The local view is updated
// optimistically; when the backend is unreachable the mutation is recorded in
// the offline queue for later replay.
func (s *Service) SetBookmarked(ctx context.Context, sessionID string, bookmarked bool) error {
	if !s.tokens.SignedIn() {
		return apperrors.New(apperrors.TypeUnauthorized, "sign in to bookmark sessions")
	}
	if _, err := s.schedule.Session(ctx, sessionID); err != nil {
		return err
	}

	if err := s.local.SetBookmarked(sessionID, bookmarked); err != nil {
		return err
	}

	method := http.MethodPut
	if !bookmarked {
		method = http.MethodDelete
	}
	return s.sendOrQueue(ctx, method, remote.BookmarkURL(sessionID), func() error {
		return s.local.SetBookmarked(sessionID, !bookmarked) // revert optimistic apply
	})
}

// SubmitSurvey submits the survey for a session.
func (s *Service) SubmitSurvey(ctx context.Context, sessionID string) error {
	if !s.tokens.SignedIn() {
		return apperrors.New(apperrors.TypeUnauthorized, "sign in to submit surveys")
	}
	if _, err := s.schedule.Session(ctx, sessionID); err != nil {
		return err
	}

	return s.sendOrQueue(ctx, http.MethodPut, remote.SurveyURL(sessionID), nil, func() error {
		return s.local.MarkSurveySubmitted(sessionID)
	})
}

// sendOrQueue issues the mutation against the backend. Offline failures are
// queued for replay and reported to the user with a single toast; other
// failures run revert (if any) and propagate.
func (s *Service) sendOrQueue(ctx context.Context, method, url string, revert func() error, onAccepted ...func() error) error {
	err := s.backend.Send(ctx, method, url, true)
	switch {
	case err == nil:
	case remote.IsOffline(err):
		if !s.queue.Supported() {
			// No durable queue in this runtime: the change stays local only.
			slog.WarnContext(ctx, "Offline and no durable queue, change not recorded", "method", method, "url", url)
			break
		}
		if qerr := s.queue.Record(url, method); qerr != nil {
			// Neither the backend nor the queue has the change; roll back the
			// optimistic apply so the local view does not drift.
			slog.ErrorContext(ctx, "Could not record offline mutation", "method", method, "url", url, "error", qerr)
			if revert != nil {
				if rerr := revert(); rerr != nil {
					slog.ErrorContext(ctx, "Could not revert optimistic change", "url", url, "error", rerr)
				}
			}
			return qerr
		}
		slog.InfoContext(ctx, "Mutation queued for replay", "method", method, "url", url)
		s.notifier.ShowMessage(offlineMessage)
	default:
		if revert != nil {
			if rerr := revert(); rerr != nil {
				slog.ErrorContext(ctx, "Could not revert optimistic change", "url", url, "error", rerr)
			}
		}
		return err
	}

	for _, fn := range onAccepted {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// ReplayOffline drains the offline queue now. Exposed for the composition
// root and for operators; normal flow runs it once after sign-in.
func (s *Service) ReplayOffline(ctx context.Context) (offline.Result, error) {
	return s.replayer.Replay(ctx)
}
