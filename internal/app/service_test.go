package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedpulse/schedpulse/internal/domain"
	apperrors "github.com/schedpulse/schedpulse/internal/errors"
	"github.com/schedpulse/schedpulse/internal/notify"
	"github.com/schedpulse/schedpulse/internal/offline"
	"github.com/schedpulse/schedpulse/internal/userdata"
)

type fakeBackend struct {
	mu       sync.Mutex
	offline  bool
	failWith error
	sent     []string // "METHOD url"
	userData domain.UserData
}

func (f *fakeBackend) Send(_ context.Context, method, url string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return apperrors.New(apperrors.TypeUnavailable, "backend unreachable")
	}
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, method+" "+url)
	return nil
}

func (f *fakeBackend) VerifyToken(_ context.Context, token string) (string, error) {
	if token == "bad" {
		return "", apperrors.New(apperrors.TypeUnauthorized, "invalid attendee token")
	}
	return "attendee-1", nil
}

func (f *fakeBackend) FetchSchedule(context.Context) (*domain.Schedule, error) {
	return &domain.Schedule{}, nil
}

func (f *fakeBackend) FetchUserData(context.Context) (*domain.UserData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data := f.userData
	return &data, nil
}

func (f *fakeBackend) SetBookmarked(ctx context.Context, sessionID string, bookmarked bool) error {
	method := http.MethodPut
	if !bookmarked {
		method = http.MethodDelete
	}
	return f.Send(ctx, method, "api/v1/user/schedule/"+sessionID, true)
}

func (f *fakeBackend) SubmitSurvey(ctx context.Context, sessionID string) error {
	return f.Send(ctx, http.MethodPut, "api/v1/user/survey/"+sessionID, true)
}

func (f *fakeBackend) sentRequests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeLookup struct {
	known map[string]bool
}

func (f *fakeLookup) Schedule(context.Context) (*domain.Schedule, error) {
	var sessions []domain.Session
	for id := range f.known {
		sessions = append(sessions, domain.Session{ID: id})
	}
	return &domain.Schedule{Sessions: sessions}, nil
}

func (f *fakeLookup) Session(_ context.Context, id string) (*domain.Session, error) {
	if !f.known[id] {
		return nil, apperrors.New(apperrors.TypeNotFound, "unknown session")
	}
	return &domain.Session{ID: id}, nil
}

type serviceFixture struct {
	service  *Service
	backend  *fakeBackend
	tokens   *TokenStore
	local    *userdata.MemoryStore
	queue    *offline.Manager
	notifier *notify.Recorder
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	backend := &fakeBackend{}
	tokens := NewTokenStore()
	local := userdata.NewMemoryStore()
	queue := offline.NewManager(t.TempDir())
	notifier := notify.NewRecorder()
	replayer := offline.NewReplayer(queue, backend, notifier)
	lookup := &fakeLookup{known: map[string]bool{"s1": true, "s2": true}}

	service := NewService(tokens, backend, local, lookup, queue, replayer, notifier)
	t.Cleanup(func() {
		service.Wait()
		queue.Close()
	})

	return &serviceFixture{
		service:  service,
		backend:  backend,
		tokens:   tokens,
		local:    local,
		queue:    queue,
		notifier: notifier,
	}
}

func TestSignInRejectsBadToken(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.SignIn(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.TypeUnauthorized))
	assert.False(t, fx.service.SignedIn())
}

func TestSignInStoresCredentials(t *testing.T) {
	fx := newServiceFixture(t)

	attendeeID, err := fx.service.SignIn(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "attendee-1", attendeeID)
	assert.True(t, fx.service.SignedIn())
	assert.Equal(t, "good-token", fx.tokens.Token())
}

func TestMutationsRequireSignIn(t *testing.T) {
	fx := newServiceFixture(t)

	err := fx.service.SetBookmarked(context.Background(), "s1", true)
	assert.True(t, apperrors.IsType(err, apperrors.TypeUnauthorized))

	err = fx.service.SubmitSurvey(context.Background(), "s1")
	assert.True(t, apperrors.IsType(err, apperrors.TypeUnauthorized))
}

func TestBookmarkUnknownSession(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")

	err := fx.service.SetBookmarked(context.Background(), "nope", true)
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestBookmarkOnline(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")

	require.NoError(t, fx.service.SetBookmarked(context.Background(), "s1", true))

	assert.Equal(t, []string{"PUT api/v1/user/schedule/s1"}, fx.backend.sentRequests())

	data, err := fx.service.UserData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, data.BookmarkedSessions)

	pending, err := fx.queue.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUnbookmarkUsesDelete(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")

	require.NoError(t, fx.service.SetBookmarked(context.Background(), "s1", true))
	require.NoError(t, fx.service.SetBookmarked(context.Background(), "s1", false))

	assert.Equal(t, []string{
		"PUT api/v1/user/schedule/s1",
		"DELETE api/v1/user/schedule/s1",
	}, fx.backend.sentRequests())
}

func TestBookmarkOfflineQueuesMutation(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")
	fx.backend.offline = true

	require.NoError(t, fx.service.SetBookmarked(context.Background(), "s1", true))

	// Optimistic local apply survives the failed request.
	data, err := fx.service.UserData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, data.BookmarkedSessions)

	pending, err := fx.queue.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.QueuedMutation{URL: "api/v1/user/schedule/s1", Method: "PUT"}, pending[0])

	toasts := fx.notifier.Toasts()
	require.Len(t, toasts, 1)
	assert.Contains(t, toasts[0].Message, "offline")
}

func TestSurveyOfflineQueuesMutation(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")
	fx.backend.offline = true

	require.NoError(t, fx.service.SubmitSurvey(context.Background(), "s2"))

	pending, err := fx.queue.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.QueuedMutation{URL: "api/v1/user/survey/s2", Method: "PUT"}, pending[0])

	data, err := fx.service.UserData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, data.SubmittedSurveys)
}

func TestSignInReplaysQueuedMutations(t *testing.T) {
	fx := newServiceFixture(t)
	require.NoError(t, fx.queue.Record("api/v1/user/schedule/s1", "PUT"))
	require.NoError(t, fx.queue.Record("api/v1/user/survey/s2", "PUT"))

	_, err := fx.service.SignIn(context.Background(), "good-token")
	require.NoError(t, err)
	fx.service.Wait()

	assert.ElementsMatch(t, []string{
		"PUT api/v1/user/schedule/s1",
		"PUT api/v1/user/survey/s2",
	}, fx.backend.sentRequests())

	pending, err := fx.queue.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	toasts := fx.notifier.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, "My Schedule was updated with offline changes.", toasts[0].Message)
}

func TestOfflineRecordFailureRevertsBookmark(t *testing.T) {
	backend := &fakeBackend{offline: true}
	tokens := NewTokenStore()
	tokens.Set("tok", "attendee-1")
	local := userdata.NewMemoryStore()
	notifier := notify.NewRecorder()

	// A regular file where the queue directory should be makes every record
	// attempt fail to open the store.
	path := filepath.Join(t.TempDir(), "queue")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o600))
	queue := offline.NewManager(path)

	replayer := offline.NewReplayer(queue, backend, notifier)
	lookup := &fakeLookup{known: map[string]bool{"s1": true}}
	service := NewService(tokens, backend, local, lookup, queue, replayer, notifier)

	err := service.SetBookmarked(context.Background(), "s1", true)
	require.Error(t, err)

	data, derr := service.UserData(context.Background())
	require.NoError(t, derr)
	assert.Empty(t, data.BookmarkedSessions)
	assert.Empty(t, notifier.Toasts())
}

func TestQueuedMutationsReplayAfterReconnect(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")

	fx.backend.offline = true
	require.NoError(t, fx.service.SetBookmarked(context.Background(), "s1", true))
	require.NoError(t, fx.service.SubmitSurvey(context.Background(), "s2"))

	fx.backend.offline = false
	result, err := fx.service.ReplayOffline(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Empty(t, result.Failed)

	pending, err := fx.queue.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	sent := fx.backend.sentRequests()
	assert.ElementsMatch(t, []string{
		"PUT api/v1/user/schedule/s1",
		"PUT api/v1/user/survey/s2",
	}, sent)
}

func TestNonOfflineFailureRevertsBookmark(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")
	fx.backend.failWith = apperrors.New(apperrors.TypeValidation, "rejected")

	err := fx.service.SetBookmarked(context.Background(), "s1", true)
	require.Error(t, err)

	data, derr := fx.service.UserData(context.Background())
	require.NoError(t, derr)
	assert.Empty(t, data.BookmarkedSessions)

	pending, perr := fx.queue.Pending()
	require.NoError(t, perr)
	assert.Empty(t, pending)
}

func TestSignOutTearsDownQueue(t *testing.T) {
	fx := newServiceFixture(t)
	fx.tokens.Set("tok", "attendee-1")
	fx.backend.offline = true
	require.NoError(t, fx.service.SetBookmarked(context.Background(), "s1", true))

	require.NoError(t, fx.service.SignOut(context.Background()))

	assert.False(t, fx.service.SignedIn())

	pending, err := fx.queue.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	data, err := fx.service.UserData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, data.BookmarkedSessions)
	assert.Empty(t, data.SubmittedSurveys)
}
