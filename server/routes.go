package server

import (
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleware()...))

	// OIDC flow
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))

	// JSON inspection endpoints
	s.RegisterRouteHandler("GET "+RouteTestConfig, ChainMiddleware(s.ConfigHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUserinfo, ChainMiddleware(s.UserinfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteIDToken, ChainMiddleware(s.IDTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteDBUsers, ChainMiddleware(s.DBUsersHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))

	// Static assets
	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteStaticJS, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		r.URL.Path = "/" + filePath
		s.fileServer.ServeHTTP(w, r)
	}
}
