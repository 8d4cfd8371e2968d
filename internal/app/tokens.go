package app

import "sync"

// TokenStore holds the signed-in attendee's credentials. It satisfies the
// backend client's TokenProvider so requests pick up the current token.
type TokenStore struct {
	mu         sync.RWMutex
	token      string
	attendeeID string
}

// NewTokenStore creates an empty (signed-out) token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Token returns the current bearer token, or "" when signed out.
func (t *TokenStore) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// AttendeeID returns the signed-in attendee's ID, or "" when signed out.
func (t *TokenStore) AttendeeID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.attendeeID
}

// SignedIn reports whether an attendee is signed in.
func (t *TokenStore) SignedIn() bool {
	return t.Token() != ""
}

// Set stores the attendee's credentials.
func (t *TokenStore) Set(token, attendeeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
	t.attendeeID = attendeeID
}

// Clear drops the credentials.
func (t *TokenStore) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.attendeeID = ""
}
