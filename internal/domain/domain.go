package domain

import (
	"context"
	"time"
)

// --- Model types ---

// Session is one entry of the master conference schedule.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Room      string    `json:"room"`
	Speakers  []string  `json:"speakers"`
	Tags      []string  `json:"tags"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Schedule is the master schedule as served by the conference backend.
type Schedule struct {
	Sessions  []Session `json:"sessions"`
	Version   string    `json:"version"`
	FetchedAt time.Time `json:"-"`
}

// UserData is the signed-in attendee's remote state: which sessions are
// bookmarked and which session surveys have been submitted.
type UserData struct {
	BookmarkedSessions []string `json:"bookmarked_sessions"`
	SubmittedSurveys   []string `json:"submitted_surveys"`
}

// QueuedMutation is one not-yet-confirmed write against the backend,
// recorded while offline. The URL is the key; replay re-issues Method
// against URL with no payload.
type QueuedMutation struct {
	URL    string
	Method string
}

// Toast is a single user-visible notification message.
type Toast struct {
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration,omitempty"`
	Action   string        `json:"action,omitempty"`
}

// --- Interfaces ---

// Requester issues requests against the conference backend. Authenticated
// requests carry the attendee's credentials; replayed offline mutations are
// always authenticated and carry no payload.
type Requester interface {
	Send(ctx context.Context, method, url string, authenticated bool) error
}

// Notifier is the toast sink. ShowMessage is fire-and-forget; implementations
// must not block the caller on slow consumers.
type Notifier interface {
	ShowMessage(message string, opts ...ToastOption)
}

// ToastOption customizes a toast (duration, action label).
type ToastOption func(*Toast)

// WithDuration sets how long the toast stays visible.
func WithDuration(d time.Duration) ToastOption {
	return func(t *Toast) { t.Duration = d }
}

// WithAction attaches an action label to the toast.
func WithAction(label string) ToastOption {
	return func(t *Toast) { t.Action = label }
}

// ScheduleSource provides the master schedule, blocking until the first
// successful fetch has completed.
type ScheduleSource interface {
	Schedule(ctx context.Context) (*Schedule, error)
}

// UserDataStore is the local durable view of the attendee's bookmarks and
// submitted surveys.
type UserDataStore interface {
	SetBookmarked(sessionID string, bookmarked bool) error
	Bookmarks() ([]string, error)
	MarkSurveySubmitted(sessionID string) error
	Surveys() ([]string, error)
	ReplaceAll(data UserData) error
	Snapshot() (UserData, error)
}

// BackendClient is the full conference backend surface used by the app layer.
type BackendClient interface {
	Requester
	VerifyToken(ctx context.Context, attendeeToken string) (string, error)
	FetchSchedule(ctx context.Context) (*Schedule, error)
	FetchUserData(ctx context.Context) (*UserData, error)
	SetBookmarked(ctx context.Context, sessionID string, bookmarked bool) error
	SubmitSurvey(ctx context.Context, sessionID string) error
}

// UpdatePublisher fans user-data changes and toasts out to connected UI clients.
type UpdatePublisher interface {
	PublishUserData(data UserData)
	PublishToast(toast Toast)
}
