package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rteixeira/go-oidc-dashboard/server/sessionstate"
)

const (
	// sessionCookieName identifies the browser session
	sessionCookieName = "session_id"
	// sessionCookieMaxAge is 24 hours, matching the token lifetime scale
	sessionCookieMaxAge = 24 * 60 * 60
)

// ensureSession returns the request's session, creating one implicitly on
// first contact and setting the session cookie.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) *sessionstate.Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if session, err := s.sessions.Get(cookie.Value); err == nil {
			return session
		}
	}

	sessionID := uuid.NewString()
	session := sessionstate.New()
	if err := s.sessions.Put(sessionID, session); err != nil {
		// In-memory Put only fails on bad arguments; log and carry on with
		// a detached session rather than failing the request.
		log.Error().Err(err).Msg("failed to store new session")
		return session
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   sessionCookieMaxAge,
	})
	return session
}

// currentSession returns the request's session without creating one.
func (s *Server) currentSession(r *http.Request) *sessionstate.Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	session, err := s.sessions.Get(cookie.Value)
	if err != nil {
		return nil
	}
	return session
}

// destroySession tears the session down fully and expires the cookie.
// Persisted identity records are untouched.
func (s *Server) destroySession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if session, err := s.sessions.Get(cookie.Value); err == nil {
			session.Clear()
		}
		if err := s.sessions.Delete(cookie.Value); err != nil {
			log.Error().Err(err).Msg("failed to delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
