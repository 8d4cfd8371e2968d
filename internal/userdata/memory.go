package userdata

import (
	"sort"
	"sync"

	"github.com/schedpulse/schedpulse/internal/domain"
)

// MemoryStore is the in-memory fallback used when no data directory is
// configured. Same contract as Store, no durability.
type MemoryStore struct {
	mu        sync.RWMutex
	bookmarks map[string]struct{}
	surveys   map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookmarks: make(map[string]struct{}),
		surveys:   make(map[string]struct{}),
	}
}

func (s *MemoryStore) SetBookmarked(sessionID string, bookmarked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bookmarked {
		s.bookmarks[sessionID] = struct{}{}
	} else {
		delete(s.bookmarks, sessionID)
	}
	return nil
}

func (s *MemoryStore) Bookmarks() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.bookmarks), nil
}

func (s *MemoryStore) MarkSurveySubmitted(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys[sessionID] = struct{}{}
	return nil
}

func (s *MemoryStore) Surveys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.surveys), nil
}

func (s *MemoryStore) Snapshot() (domain.UserData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.UserData{
		BookmarkedSessions: sortedKeys(s.bookmarks),
		SubmittedSurveys:   sortedKeys(s.surveys),
	}, nil
}

func (s *MemoryStore) ReplaceAll(data domain.UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks = make(map[string]struct{}, len(data.BookmarkedSessions))
	for _, id := range data.BookmarkedSessions {
		s.bookmarks[id] = struct{}{}
	}
	s.surveys = make(map[string]struct{}, len(data.SubmittedSurveys))
	for _, id := range data.SubmittedSurveys {
		s.surveys[id] = struct{}{}
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
