package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rteixeira/go-oidc-dashboard/identity"
	"github.com/rteixeira/go-oidc-dashboard/internal/config"
	"github.com/rteixeira/go-oidc-dashboard/provider"
	"github.com/rteixeira/go-oidc-dashboard/server"
	"github.com/rteixeira/go-oidc-dashboard/server/flow"
	"github.com/rteixeira/go-oidc-dashboard/server/sessionstate"
	"github.com/rteixeira/go-oidc-dashboard/token/keyset"
	"github.com/rteixeira/go-oidc-dashboard/token/verifier"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	srv, err := newServer(c)
	if err != nil {
		return fmt.Errorf("newServer %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func newServer(c config.Config) (*server.Server, error) {
	endpoints := provider.EndpointsFromConfig(c)

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = c.GetHTTPClientTimeout()

	keys := keyset.NewResolver(endpoints.JWKSURL, httpClient, c.GetJWKSCooldown())
	idTokenVerifier := verifier.New(endpoints.Issuer, c.GetClientID(), keys)
	userinfoClient := provider.NewClient(endpoints, httpClient)

	identities := identity.NewInMemoryRepo()
	sessions := sessionstate.NewInMemoryRepo()

	flowController := flow.NewController(flow.Config{
		ClientID:               c.GetClientID(),
		ClientSecret:           c.GetClientSecret(),
		RedirectURL:            c.GetRedirectURI(),
		Scopes:                 c.GetScopes(),
		Endpoints:              endpoints,
		AllowUnverifiedIDToken: c.GetAllowUnverifiedIDToken(),
	}, idTokenVerifier, userinfoClient, identities, httpClient)

	return server.New(c, flowController, sessions, identities, userinfoClient)
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
