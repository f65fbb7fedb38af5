package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rteixeira/go-oidc-dashboard/identity"
	"github.com/rteixeira/go-oidc-dashboard/internal/config"
	"github.com/rteixeira/go-oidc-dashboard/provider"
	"github.com/rteixeira/go-oidc-dashboard/server/flow"
	"github.com/rteixeira/go-oidc-dashboard/server/sessionstate"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "production")
	mux        *http.ServeMux
	routes     []string
	fileServer http.Handler
	config     config.Config
	flow       *flow.Controller
	sessions   sessionstate.Repo
	identities identity.Repo
	userinfo   *provider.Client
	startedAt  time.Time
}

func New(cfg config.Config, flowController *flow.Controller, sessions sessionstate.Repo, identities identity.Repo, userinfo *provider.Client) (*Server, error) {
	if flowController == nil {
		return nil, fmt.Errorf("[Server New] flow controller is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("[Server New] session repository is required")
	}
	if identities == nil {
		return nil, fmt.Errorf("[Server New] identity repository is required")
	}

	s := &Server{
		mux:        http.NewServeMux(),
		config:     cfg,
		flow:       flowController,
		sessions:   sessions,
		identities: identities,
		userinfo:   userinfo,
		startedAt:  time.Now(),
	}
	s.env = cfg.GetEnv()
	s.fileServer = FileServerHandler()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
