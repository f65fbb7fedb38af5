package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// ConfigHandler reports the relying-party configuration and a summary of
// the caller's session. The client id is masked.
func (s *Server) ConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.currentSession(r)
		authenticated := session != nil && session.IsAuthenticated()

		sessionInfo := map[string]any{
			"has_access_token": authenticated,
			"has_id_token":     session != nil && session.IDToken() != "",
		}
		if session != nil {
			sessionInfo["user_sub"] = session.Subject()
			sessionInfo["expires_at"] = session.TokenExpiry()
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "OK",
			"client_id":    maskClientID(s.config.GetClientID()),
			"redirect_uri": s.config.GetRedirectURI(),
			"scopes":       s.config.GetScopes(),
			"endpoints": map[string]string{
				"authorization": s.config.GetAuthorizationURL(),
				"token":         s.config.GetTokenURL(),
				"userinfo":      s.config.GetUserinfoURL(),
				"jwks":          s.config.GetJWKSURL(),
			},
			"authenticated": authenticated,
			"session":       sessionInfo,
		})
	}
}

// UserinfoHandler refetches the profile from the provider with the
// session's access token.
func (s *Server) UserinfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.currentSession(r)
		if session == nil || !session.IsAuthenticated() {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   "not authenticated",
				"message": "log in first to access user information",
			})
			return
		}

		info, err := s.userinfo.Userinfo(r.Context(), session.AccessToken())
		if err != nil {
			log.Error().Err(err).Msg("userinfo refetch failed")
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":   "failed to fetch user information",
				"details": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"source": "provider userinfo endpoint",
			"data":   info.Raw,
			"session_info": map[string]any{
				"user_sub":                session.Subject(),
				"token_expires_at":        session.TokenExpiry(),
				"token_valid_for_seconds": session.RemainingValidity(time.Now()),
			},
		})
	}
}

// IDTokenHandler shows the session ID token's decoded header and payload.
// The decode is display-only and deliberately unverified.
func (s *Server) IDTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.currentSession(r)
		if session == nil || session.IDToken() == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   "no id_token in session",
				"message": "log in first",
			})
			return
		}

		claims := jwt.MapClaims{}
		token, _, err := jwt.NewParser().ParseUnverified(session.IDToken(), claims)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "failed to decode id_token",
				"message": err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"header":  token.Header,
			"payload": claims,
			"note":    "decoded id_token of the current session; claims shown without re-verification",
		})
	}
}

// DBUsersHandler lists stored identity records, most recently updated
// first.
func (s *Server) DBUsersHandler() http.HandlerFunc {
	const listLimit = 50

	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.identities.ListRecentlyUpdated(listLimit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"count": len(records),
			"users": records,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "OK",
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		})
	}
}

func maskClientID(clientID string) string {
	if len(clientID) <= 8 {
		return clientID
	}
	return clientID[:8] + "..."
}
