package userdata

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/schedpulse/schedpulse/internal/domain"
)

const (
	bookmarkPrefix = "bookmark/"
	surveyPrefix   = "survey/"
)

// Store is the Pebble-backed local view of the attendee's user data.
// Keys are "bookmark/<sessionID>" and "survey/<sessionID>"; values carry no
// information beyond key presence.
type Store struct {
	db *pebble.DB
}

// Open creates or opens the store rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("userdata: open store: %w", err)
	}
	return &Store{db: db}, nil
}

// SetBookmarked adds or removes a bookmark.
func (s *Store) SetBookmarked(sessionID string, bookmarked bool) error {
	key := []byte(bookmarkPrefix + sessionID)
	if bookmarked {
		return s.db.Set(key, []byte{1}, pebble.Sync)
	}
	return s.db.Delete(key, pebble.Sync)
}

// Bookmarks returns all bookmarked session IDs in key order.
func (s *Store) Bookmarks() ([]string, error) {
	return s.listPrefix(bookmarkPrefix)
}

// MarkSurveySubmitted records that the survey for a session was submitted.
// Surveys are never un-submitted locally.
func (s *Store) MarkSurveySubmitted(sessionID string) error {
	return s.db.Set([]byte(surveyPrefix+sessionID), []byte{1}, pebble.Sync)
}

// Surveys returns all submitted survey session IDs in key order.
func (s *Store) Surveys() ([]string, error) {
	return s.listPrefix(surveyPrefix)
}

// Snapshot returns the whole local view.
func (s *Store) Snapshot() (domain.UserData, error) {
	bookmarks, err := s.Bookmarks()
	if err != nil {
		return domain.UserData{}, err
	}
	surveys, err := s.Surveys()
	if err != nil {
		return domain.UserData{}, err
	}
	return domain.UserData{BookmarkedSessions: bookmarks, SubmittedSurveys: surveys}, nil
}

// ReplaceAll atomically swaps the local view for the given remote state.
func (s *Store) ReplaceAll(data domain.UserData) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, prefix := range []string{bookmarkPrefix, surveyPrefix} {
		if err := batch.DeleteRange([]byte(prefix), prefixUpperBound(prefix), nil); err != nil {
			return fmt.Errorf("userdata: clear %s: %w", prefix, err)
		}
	}
	for _, id := range data.BookmarkedSessions {
		if err := batch.Set([]byte(bookmarkPrefix+id), []byte{1}, nil); err != nil {
			return fmt.Errorf("userdata: set bookmark: %w", err)
		}
	}
	for _, id := range data.SubmittedSurveys {
		if err := batch.Set([]byte(surveyPrefix+id), []byte{1}, nil); err != nil {
			return fmt.Errorf("userdata: set survey: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("userdata: commit replace: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) listPrefix(prefix string) ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("userdata: iterate %s: %w", prefix, err)
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key())[len(prefix):])
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("userdata: iterate %s: %w", prefix, err)
	}
	return ids, nil
}

func prefixUpperBound(prefix string) []byte {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	return upper
}
