package userdata

import (
	"path/filepath"
	"testing"

	"github.com/schedpulse/schedpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "userdata"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBookmarkRoundtrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetBookmarked("s2", true))
	require.NoError(t, s.SetBookmarked("s1", true))

	bookmarks, err := s.Bookmarks()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, bookmarks)

	require.NoError(t, s.SetBookmarked("s1", false))
	bookmarks, err = s.Bookmarks()
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, bookmarks)
}

func TestUnbookmarkMissingSessionIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetBookmarked("never-bookmarked", false))
}

func TestSurveysAreSeparateFromBookmarks(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetBookmarked("s1", true))
	require.NoError(t, s.MarkSurveySubmitted("s1"))
	require.NoError(t, s.MarkSurveySubmitted("s9"))

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, snapshot.BookmarkedSessions)
	assert.Equal(t, []string{"s1", "s9"}, snapshot.SubmittedSurveys)
}

func TestReplaceAllSwapsView(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetBookmarked("old", true))
	require.NoError(t, s.MarkSurveySubmitted("old-survey"))

	require.NoError(t, s.ReplaceAll(domain.UserData{
		BookmarkedSessions: []string{"new1", "new2"},
		SubmittedSurveys:   []string{"new-survey"},
	}))

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"new1", "new2"}, snapshot.BookmarkedSessions)
	assert.Equal(t, []string{"new-survey"}, snapshot.SubmittedSurveys)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "userdata")

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetBookmarked("s1", true))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	bookmarks, err := reopened.Bookmarks()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, bookmarks)
}

func TestMemoryStoreMatchesContract(t *testing.T) {
	var s domain.UserDataStore = NewMemoryStore()

	require.NoError(t, s.SetBookmarked("s1", true))
	require.NoError(t, s.MarkSurveySubmitted("s2"))

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, snapshot.BookmarkedSessions)
	assert.Equal(t, []string{"s2"}, snapshot.SubmittedSurveys)

	require.NoError(t, s.ReplaceAll(domain.UserData{BookmarkedSessions: []string{"x"}}))
	bookmarks, err := s.Bookmarks()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, bookmarks)
	surveys, err := s.Surveys()
	require.NoError(t, err)
	assert.Empty(t, surveys)
}
