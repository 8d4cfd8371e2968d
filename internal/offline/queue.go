package offline

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/schedpulse/schedpulse/internal/metrics"
)

// ErrStoreUnavailable signals that the durable queue could not be opened or read.
var ErrStoreUnavailable = errors.New("offline: durable store unavailable")

// queue is the durable mapping from request URL to HTTP method. Keys are URLs,
// values are methods; there are no other fields and no versioning.
type queue struct {
	db *pebble.DB
}

func openStore(dir string) (*queue, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &queue{db: db}, nil
}

func (q *queue) put(url, method string) error {
	return q.db.Set([]byte(url), []byte(method), pebble.Sync)
}

// delete removes an entry. Deleting a missing key is a no-op, which keeps an
// overlapping replay invocation benign.
func (q *queue) delete(url string) error {
	return q.db.Delete([]byte(url), pebble.Sync)
}

func (q *queue) entries() ([]domain.QueuedMutation, error) {
	iter, err := q.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer iter.Close()

	var muts []domain.QueuedMutation
	for iter.First(); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		muts = append(muts, domain.QueuedMutation{
			URL:    string(iter.Key()),
			Method: string(val),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return muts, nil
}

func (q *queue) close() error {
	return q.db.Close()
}

// Manager owns the durable queue. It opens the store lazily so that a missing
// or corrupt store surfaces on first use, and it is the only component allowed
// to mutate the queue.
type Manager struct {
	dir string

	mu     sync.Mutex
	queue  *queue
	active sync.WaitGroup
}

// NewManager creates a queue manager rooted at dir. An empty dir means the
// runtime has no durable-store capability: recording and replay become no-ops.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Supported reports whether offline queueing is available.
func (m *Manager) Supported() bool {
	return m != nil && m.dir != ""
}

// acquire opens the store and marks the caller as an active user. Destroy and
// Close wait for active users before closing the store, so the returned queue
// stays valid until the matching release.
func (m *Manager) acquire() (*queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue == nil {
		q, err := openStore(m.dir)
		if err != nil {
			return nil, err
		}
		m.queue = q
	}
	m.active.Add(1)
	return m.queue, nil
}

func (m *Manager) release() {
	m.active.Done()
}

// Record persists a failed state-changing request for later replay.
// Key = URL: re-recording the same URL overwrites the method, keeping the
// invariant of one pending mutation per endpoint.
func (m *Manager) Record(url, method string) error {
	if !m.Supported() {
		return nil
	}
	q, err := m.acquire()
	if err != nil {
		return err
	}
	defer m.release()
	if err := q.put(url, method); err != nil {
		return fmt.Errorf("offline: record %s %s: %w", method, url, err)
	}
	metrics.QueuedMutationsTotal.Inc()
	m.observeDepth(q)
	return nil
}

// Pending returns the queued mutations in key order.
func (m *Manager) Pending() ([]domain.QueuedMutation, error) {
	if !m.Supported() {
		return nil, nil
	}
	q, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer m.release()
	return q.entries()
}

// Destroy deletes the entire durable queue unconditionally. Used on sign-out;
// there is no partial-delete state to reconcile. Waits for in-flight users
// (an overlapping replay, a concurrent record) before closing the store.
func (m *Manager) Destroy() error {
	if !m.Supported() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active.Wait()
	if m.queue != nil {
		if err := m.queue.close(); err != nil {
			return fmt.Errorf("offline: close store before destroy: %w", err)
		}
		m.queue = nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("offline: destroy store: %w", err)
	}
	metrics.QueueDepth.Set(0)
	return nil
}

// Close releases the underlying store, if open. Like Destroy it waits for
// in-flight users first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active.Wait()
	if m.queue == nil {
		return nil
	}
	err := m.queue.close()
	m.queue = nil
	return err
}

func (m *Manager) observeDepth(q *queue) {
	if entries, err := q.entries(); err == nil {
		metrics.QueueDepth.Set(float64(len(entries)))
	}
}
