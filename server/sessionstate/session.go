// Package sessionstate holds the per-browser-session record consulted by
// every authenticated endpoint: the pending CSRF state between flow start
// and callback, the tokens from a completed login, and a denormalized copy
// of the display fields for page rendering.
package sessionstate

import (
	"sync"
	"time"
)

// Session is the server-side state for one browser session. All mutation
// goes through methods; the zero value is a valid anonymous session.
type Session struct {
	mu sync.Mutex

	// pendingState is the CSRF state issued at flow start. It is single
	// use: consumed by the first callback attempt regardless of outcome.
	pendingState string

	accessToken string
	idToken     string
	tokenExpiry int64 // absolute epoch seconds

	subject string
	name    string
	email   string
	picture string
}

func New() *Session {
	return &Session{}
}

// SetPendingState records the CSRF state for a newly started flow,
// replacing any earlier pending state.
func (s *Session) SetPendingState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingState = state
}

// ConsumePendingState returns the pending CSRF state and clears it. The
// second return is false when no flow is pending for this session.
func (s *Session) ConsumePendingState() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.pendingState
	s.pendingState = ""
	return state, state != ""
}

// SetTokens stores the tokens from a successful exchange together with
// their absolute expiry.
func (s *Session) SetTokens(accessToken, idToken string, tokenExpiry int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.idToken = idToken
	s.tokenExpiry = tokenExpiry
}

// SetProfile stores the display fields shown on authenticated pages.
func (s *Session) SetProfile(subject, name, email, picture string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
	s.name = name
	s.email = email
	s.picture = picture
}

// IsAuthenticated reports whether this session completed a login.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

// RemainingValidity returns how many whole seconds the access token is
// still valid for at the given instant, never negative. Display only; an
// expired token does not log the session out.
func (s *Session) RemainingValidity(now time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.tokenExpiry - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clear is the full logout teardown. Persisted identity records are not
// touched.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingState = ""
	s.accessToken = ""
	s.idToken = ""
	s.tokenExpiry = 0
	s.subject = ""
	s.name = ""
	s.email = ""
	s.picture = ""
}

func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *Session) IDToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idToken
}

func (s *Session) TokenExpiry() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenExpiry
}

func (s *Session) Subject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) Picture() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picture
}
