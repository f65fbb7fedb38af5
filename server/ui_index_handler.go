package server

import (
	"net/http"
	"time"
)

// IndexHandler renders the dashboard
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("index.html")
	if err != nil {
		panic("Failed to parse index template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		session := s.currentSession(r)

		data := map[string]any{
			"AppName":     s.config.GetAppName(),
			"RedirectURI": s.config.GetRedirectURI(),
		}
		if session != nil && session.IsAuthenticated() {
			data["IsAuthenticated"] = true
			data["Name"] = session.Name()
			data["Email"] = session.Email()
			data["Picture"] = session.Picture()
			data["TokenValidFor"] = session.RemainingValidity(time.Now())
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	}
}
