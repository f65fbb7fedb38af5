// Package flow drives the OIDC authorization-code flow: it issues the
// authorization redirect with a CSRF state, validates the callback,
// exchanges the code for tokens, verifies the ID token, fetches userinfo,
// and reconciles the identity record.
package flow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/rteixeira/go-oidc-dashboard/identity"
	"github.com/rteixeira/go-oidc-dashboard/provider"
	"github.com/rteixeira/go-oidc-dashboard/server/sessionstate"
	"github.com/rteixeira/go-oidc-dashboard/token/verifier"
)

const stateLength = 32

// Config is the immutable relying-party configuration injected at
// construction.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoints    provider.Endpoints

	// AllowUnverifiedIDToken enables the explicit degraded fallback: when
	// ID-token verification fails, the flow proceeds on unverified claims
	// and logs a distinct unverified-trust event. Keep this off in a
	// hardened deployment.
	AllowUnverifiedIDToken bool
}

// TokenVerifier validates an ID token and, for the degraded fallback only,
// decodes one without verification.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (verifier.Claims, error)
	DecodeUnverified(rawIDToken string) (verifier.Claims, error)
}

// UserinfoFetcher retrieves the profile for an access token.
type UserinfoFetcher interface {
	Userinfo(ctx context.Context, accessToken string) (provider.Userinfo, error)
}

// Result is the success payload of a completed callback.
type Result struct {
	Record   identity.Record
	Claims   verifier.Claims
	Userinfo provider.Userinfo

	// Unverified marks claims that were trusted without signature
	// verification under the degraded fallback.
	Unverified bool

	// PersistenceErr reports an identity upsert failure. The login itself
	// still succeeded at the protocol level; the surrounding system owns
	// the retry.
	PersistenceErr error
}

// Controller owns the authorization-code flow for one provider and client.
type Controller struct {
	cfg        Config
	oauth      oauth2.Config
	verifier   TokenVerifier
	userinfo   UserinfoFetcher
	identities identity.Repo
	httpClient *http.Client
	now        func() time.Time
}

func NewController(cfg Config, tokenVerifier TokenVerifier, userinfo UserinfoFetcher, identities identity.Repo, httpClient *http.Client) *Controller {
	return &Controller{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Endpoints.AuthorizationURL,
				TokenURL: cfg.Endpoints.TokenURL,
				// client_id/client_secret go in the form body, per the
				// provider's token endpoint contract
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:   tokenVerifier,
		userinfo:   userinfo,
		identities: identities,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Begin generates a fresh CSRF state, stores it as the session's pending
// state, and returns the provider authorization URL. The identity store is
// not touched.
func (c *Controller) Begin(_ context.Context, session *sessionstate.Session) (string, error) {
	state, err := newState()
	if err != nil {
		return "", err
	}
	session.SetPendingState(state)

	authURL := c.oauth.AuthCodeURL(state)
	log.Debug().Str("auth_url", c.cfg.Endpoints.AuthorizationURL).Msg("authorization flow started")
	return authURL, nil
}

// Callback validates the provider callback and drives the rest of the flow
// strictly in sequence: exchange, verify, userinfo, session update, identity
// upsert. It returns a *Error describing the failure kind, or a Result.
func (c *Controller) Callback(ctx context.Context, session *sessionstate.Session, query url.Values) (*Result, error) {
	if errCode := query.Get("error"); errCode != "" {
		// Terminal for this flow attempt; session state and tokens stay
		// untouched.
		return nil, &Error{
			Kind:        ErrProviderDenied,
			Code:        errCode,
			Description: query.Get("error_description"),
		}
	}

	code := query.Get("code")
	if code == "" {
		return nil, &Error{Kind: ErrMissingAuthorizationCode}
	}

	// The pending state is consumed here, once, whatever the comparison
	// outcome: a replayed callback finds nothing pending.
	pending, ok := session.ConsumePendingState()
	state := query.Get("state")
	if !ok || state == "" || state != pending {
		log.Warn().Bool("flow_pending", ok).Msg("callback state mismatch, possible CSRF")
		return nil, &Error{Kind: ErrStateMismatch, Description: "state missing, already consumed, or not issued by this session"}
	}

	token, err := c.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	tokenExpiry := c.now().Unix()
	if !token.Expiry.IsZero() {
		tokenExpiry = token.Expiry.Unix()
	}

	result := &Result{}
	idToken, _ := token.Extra("id_token").(string)
	if idToken != "" {
		result.Claims, result.Unverified, err = c.verifyIDToken(ctx, idToken)
		if err != nil {
			return nil, err
		}
	}

	result.Userinfo, err = c.userinfo.Userinfo(ctx, token.AccessToken)
	if err != nil {
		return nil, &Error{Kind: ErrUserinfoFetchFailed, Description: err.Error()}
	}

	subject := result.Userinfo.Subject
	if subject == "" {
		subject = result.Claims.Subject
	}
	if subject == "" {
		return nil, &Error{Kind: ErrMissingSubject}
	}

	session.SetTokens(token.AccessToken, idToken, tokenExpiry)
	session.SetProfile(subject, result.Userinfo.Name, result.Userinfo.Email, result.Userinfo.Picture)

	record := identity.Record{
		Subject:       subject,
		Name:          result.Userinfo.Name,
		GivenName:     result.Userinfo.GivenName,
		FamilyName:    result.Userinfo.FamilyName,
		Picture:       result.Userinfo.Picture,
		Email:         result.Userinfo.Email,
		EmailVerified: result.Userinfo.EmailVerified,
		Locale:        result.Userinfo.Locale,
		AccessToken:   token.AccessToken,
		IDToken:       idToken,
		TokenExpiry:   tokenExpiry,
		RawUserinfo:   result.Userinfo.Raw,
	}

	stored, err := c.identities.UpsertBySubject(record)
	if err != nil {
		// The user is logged in at the protocol level regardless; report
		// the failure to the operator and in the result.
		log.Error().Err(err).Str("sub", subject).Msg("identity record upsert failed")
		result.PersistenceErr = &Error{Kind: ErrPersistence, Description: err.Error()}
		result.Record = record
	} else {
		result.Record = stored
	}

	log.Info().
		Str("sub", subject).
		Bool("unverified_claims", result.Unverified).
		Int64("token_expiry", tokenExpiry).
		Msg("authorization flow completed")
	return result, nil
}

func (c *Controller) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &Error{
				Kind:        ErrTokenExchangeFailed,
				Code:        retrieveErr.ErrorCode,
				Description: strings.TrimSpace(string(retrieveErr.Body)),
			}
		}
		return nil, &Error{Kind: ErrTokenExchangeFailed, Description: err.Error()}
	}
	return token, nil
}

func (c *Controller) verifyIDToken(ctx context.Context, idToken string) (verifier.Claims, bool, error) {
	claims, err := c.verifier.Verify(ctx, idToken)
	if err == nil {
		return claims, false, nil
	}

	if !c.cfg.AllowUnverifiedIDToken {
		return verifier.Claims{}, false, &Error{Kind: err, Description: "id_token verification failed"}
	}

	// Unverified-trust event: must stand out in telemetry.
	log.Warn().Err(err).Msg("id_token verification failed, proceeding with UNVERIFIED claims")

	claims, decodeErr := c.verifier.DecodeUnverified(idToken)
	if decodeErr != nil {
		return verifier.Claims{}, false, &Error{Kind: err, Description: decodeErr.Error()}
	}
	return claims, true, nil
}

func newState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
