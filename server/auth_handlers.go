package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rteixeira/go-oidc-dashboard/server/flow"
	"github.com/rteixeira/go-oidc-dashboard/token/keyset"
	"github.com/rteixeira/go-oidc-dashboard/token/verifier"
)

// LoginHandler starts the authorization-code flow and redirects the browser
// to the provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.ensureSession(w, r)

		authURL, err := s.flow.Begin(r.Context(), session)
		if err != nil {
			log.Error().Err(err).Msg("failed to start authorization flow")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the flow: on success the browser lands back on
// the dashboard, on failure it gets a diagnostic error page with a status
// matching the failure kind.
func (s *Server) CallbackHandler() http.HandlerFunc {
	errorTmpl, err := ParseTemplate("error.html")
	if err != nil {
		panic("Failed to parse error template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session := s.ensureSession(w, r)

		result, err := s.flow.Callback(r.Context(), session, r.URL.Query())
		if err != nil {
			status := callbackStatus(err)
			log.Warn().Err(err).Int("status", status).Msg("authorization callback failed")

			data := map[string]any{
				"AppName": s.config.GetAppName(),
				"Status":  status,
				"Detail":  err.Error(),
			}
			var flowErr *flow.Error
			if errors.As(err, &flowErr) {
				data["Kind"] = flowErr.Kind.Error()
				data["Code"] = flowErr.Code
				data["Description"] = flowErr.Description
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(status)
			_ = errorTmpl.Execute(w, data)
			return
		}

		if result.PersistenceErr != nil {
			// Login still stands; the record write is retried outside the
			// request path.
			log.Error().Err(result.PersistenceErr).Str("sub", result.Record.Subject).Msg("identity record not persisted")
		}

		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// LogoutHandler destroys the session and returns to the dashboard.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.destroySession(w, r)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// callbackStatus maps a flow failure kind onto an HTTP status: client
// errors for anything the browser (or an attacker) sent, bad gateway for
// upstream provider failures, unauthorized for verification failures.
func callbackStatus(err error) int {
	switch {
	case errors.Is(err, flow.ErrStateMismatch),
		errors.Is(err, flow.ErrProviderDenied),
		errors.Is(err, flow.ErrMissingAuthorizationCode):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrTokenExchangeFailed),
		errors.Is(err, flow.ErrUserinfoFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, verifier.ErrInvalidSignature),
		errors.Is(err, verifier.ErrIssuerMismatch),
		errors.Is(err, verifier.ErrAudienceMismatch),
		errors.Is(err, verifier.ErrTokenExpired),
		errors.Is(err, keyset.ErrUnknownKeyID):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
