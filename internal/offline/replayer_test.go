package offline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	mu    sync.Mutex
	calls []string         // "METHOD url"
	fail  map[string]error // url -> error to return
	auth  []bool
}

func (f *fakeRequester) Send(_ context.Context, method, url string, authenticated bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+" "+url)
	f.auth = append(f.auth, authenticated)
	if err, ok := f.fail[url]; ok {
		return err
	}
	return nil
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type toastRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *toastRecorder) ShowMessage(message string, _ ...domain.ToastOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *toastRecorder) shown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func TestReplayEmptyQueue(t *testing.T) {
	m := newTestManager(t)
	requester := &fakeRequester{}
	toasts := &toastRecorder{}

	result, err := NewReplayer(m, requester, toasts).Replay(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Attempted)
	assert.Zero(t, requester.callCount())
	assert.Empty(t, toasts.shown())
}

func TestReplayDrainsOnSuccess(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Record("api/v1/user/schedule/a", "GET"))
	require.NoError(t, m.Record("api/v1/user/schedule/b", "PUT"))

	requester := &fakeRequester{}
	toasts := &toastRecorder{}

	result, err := NewReplayer(m, requester, toasts).Replay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempted)
	assert.Len(t, result.Replayed, 2)
	assert.Empty(t, result.Failed)

	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Len(t, toasts.shown(), 1)
	assert.Equal(t, "My Schedule was updated with offline changes.", toasts.shown()[0])

	// Replay issues authenticated requests only.
	for _, authed := range requester.auth {
		assert.True(t, authed)
	}
}

func TestReplayRetainsFailedEntries(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Record("api/v1/user/schedule/a", "GET"))
	require.NoError(t, m.Record("api/v1/user/schedule/b", "PUT"))

	requester := &fakeRequester{fail: map[string]error{
		"api/v1/user/schedule/b": errors.New("503 service unavailable"),
	}}
	toasts := &toastRecorder{}

	result, err := NewReplayer(m, requester, toasts).Replay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "api/v1/user/schedule/b", result.Failed[0].Mutation.URL)

	pending, err := m.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.QueuedMutation{URL: "api/v1/user/schedule/b", Method: "PUT"}, pending[0])

	// Still exactly one toast: per-entry failures are not surfaced separately.
	assert.Len(t, toasts.shown(), 1)
}

func TestReplayStoreOpenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o600))

	requester := &fakeRequester{}
	toasts := &toastRecorder{}

	_, err := NewReplayer(NewManager(path), requester, toasts).Replay(context.Background())
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))

	assert.Zero(t, requester.callCount())
	require.Len(t, toasts.shown(), 1)
	assert.NotEqual(t, "My Schedule was updated with offline changes.", toasts.shown()[0])
}

func TestReplayCapabilityGate(t *testing.T) {
	requester := &fakeRequester{}
	toasts := &toastRecorder{}

	result, err := NewReplayer(NewManager(""), requester, toasts).Replay(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Attempted)
	assert.Zero(t, requester.callCount())
	assert.Empty(t, toasts.shown())
}

func TestReplaySurveyScenario(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Record("api/v1/user/survey/42", "PUT"))

	requester := &fakeRequester{}
	toasts := &toastRecorder{}

	result, err := NewReplayer(m, requester, toasts).Replay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.QueuedMutation{{URL: "api/v1/user/survey/42", Method: "PUT"}}, result.Replayed)

	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []string{"My Schedule was updated with offline changes."}, toasts.shown())
}

// blockingRequester parks every Send until proceed is closed, signalling
// started on the first call.
type blockingRequester struct {
	started chan struct{}
	proceed chan struct{}
	once    sync.Once
}

func (b *blockingRequester) Send(context.Context, string, string, bool) error {
	b.once.Do(func() { close(b.started) })
	<-b.proceed
	return nil
}

func TestDestroyWaitsForInFlightReplay(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Record("api/v1/user/schedule/a", "PUT"))

	requester := &blockingRequester{
		started: make(chan struct{}),
		proceed: make(chan struct{}),
	}
	toasts := &toastRecorder{}

	replayDone := make(chan error, 1)
	go func() {
		_, err := NewReplayer(m, requester, toasts).Replay(context.Background())
		replayDone <- err
	}()
	<-requester.started

	// Sign-out arriving mid-replay: teardown must wait for the replay to
	// finish instead of closing the store under it.
	destroyDone := make(chan error, 1)
	go func() { destroyDone <- m.Destroy() }()

	select {
	case err := <-destroyDone:
		t.Fatalf("destroy finished while replay was still in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(requester.proceed)
	require.NoError(t, <-replayDone)
	require.NoError(t, <-destroyDone)

	pending, err := m.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReplayTwiceIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Record("api/v1/user/schedule/a", "PUT"))

	requester := &fakeRequester{}
	toasts := &toastRecorder{}
	replayer := NewReplayer(m, requester, toasts)

	_, err := replayer.Replay(context.Background())
	require.NoError(t, err)
	_, err = replayer.Replay(context.Background())
	require.NoError(t, err)

	// Second invocation found an empty queue: no extra request, no extra toast.
	assert.Equal(t, 1, requester.callCount())
	assert.Len(t, toasts.shown(), 1)
}
