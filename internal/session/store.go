// Package session holds per-user conversation state: the current step label
// and the scratch payload accumulated across steps. The store is injected
// into the bot so tests can run with an isolated instance; nothing here is
// persisted beyond the process lifetime.
package session

import (
	"sync"

	"froggle/internal/models"
)

// State labels the current step of a user's conversation.
type State string

const (
	StateIdle State = "IDLE"

	// Browsing
	StateBrowseCity State = "BROWSE_CITY"

	// Ad submission
	StateAdCity        State = "AD_CITY"
	StateAdTags        State = "AD_TAGS"
	StateAdTitle       State = "AD_TITLE"
	StateAdDescription State = "AD_DESCRIPTION"
	StateAdPrice       State = "AD_PRICE"
	StateAdMedia       State = "AD_MEDIA"
	StateAdContacts    State = "AD_CONTACTS"
	StateAdConfirm     State = "AD_CONFIRM"

	// Moderation
	StateModeration    State = "MODERATION"
	StateConfirmDelete State = "CONFIRM_DELETE"
)

// Draft is the scratch payload of an in-progress ad submission.
type Draft struct {
	Category    string
	City        string
	Tags        []string
	Title       string
	Description string
	Price       string
	Media       []models.MediaItem

	// StatusMessageID is the "N files uploaded" message, edited in place as
	// more files arrive.
	StatusMessageID int

	// SelectedContact is the chosen base contact (own handle or a saved
	// one); the user may append free text to it before confirming.
	SelectedContact string
	Contact         string
}

// Session is one user's conversation state.
type Session struct {
	State State
	Draft Draft

	// Category and City selected in the browsing flow; submission and
	// subscriptions start from them.
	Category string
	City     string

	// MenuMessageID is the main-menu message, edited in place for
	// notifications.
	MenuMessageID int
}

// Store is a keyed, mutable map of sessions. Keys are stable user
// identifiers (Telegram ids).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for key, creating an idle one if absent.
func (s *Store) Get(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &Session{State: StateIdle}
		s.sessions[key] = sess
	}
	return sess
}

// Peek returns the session for key without creating one.
func (s *Store) Peek(key string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Reset discards the in-progress flow: state back to idle, scratch payload
// dropped. The browse category and menu message survive so the user lands
// back where they were.
func (s *Store) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		sess.State = StateIdle
		sess.Draft = Draft{}
	}
}

// Clear removes the session entirely.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}
