// Package oidctest runs an in-process identity provider for tests: a token
// endpoint, a userinfo endpoint, and a JWKS endpoint backed by a real RSA
// key, so flows under test exchange codes and verify RS256 signatures
// against live HTTP responses.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/rteixeira/go-oidc-dashboard/provider"
)

const (
	DefaultKeyID    = "oidctest-kid-1"
	DefaultIssuer   = "https://oidctest.example.com"
	defaultAuthCode = "oidctest-auth-code"
)

// Provider is a fake OIDC identity provider bound to an httptest server.
type Provider struct {
	t          *testing.T
	httpServer *httptest.Server
	signingKey *rsa.PrivateKey

	mu           sync.Mutex
	issuer       string
	keyID        string
	clientID     string
	clientSecret string
	expectedCode string
	accessToken  string
	idToken      string
	expiresIn    int
	omitExpires  bool
	userinfo     map[string]any

	TokenRequests    atomic.Int64
	UserinfoRequests atomic.Int64
	JWKSRequests     atomic.Int64
}

// Start launches the fake provider. The server stops with the test.
func Start(t *testing.T) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &Provider{
		t:            t,
		signingKey:   key,
		issuer:       DefaultIssuer,
		keyID:        DefaultKeyID,
		expectedCode: defaultAuthCode,
		accessToken:  "AT1",
		expiresIn:    3600,
		userinfo:     map[string]any{"sub": "U1", "name": "Ana", "email": "ana@x.com"},
	}
	p.httpServer = httptest.NewServer(p)
	t.Cleanup(p.httpServer.Close)
	return p
}

// Endpoints returns the provider endpoint set pointing at this server.
func (p *Provider) Endpoints() provider.Endpoints {
	addr := p.httpServer.URL
	return provider.Endpoints{
		Issuer:           p.Issuer(),
		AuthorizationURL: addr + "/authorize",
		TokenURL:         addr + "/token",
		UserinfoURL:      addr + "/userinfo",
		JWKSURL:          addr + "/jwks",
	}
}

func (p *Provider) Issuer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issuer
}

func (p *Provider) KeyID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keyID
}

// ExpectedAuthCode is the only code the token endpoint accepts.
func (p *Provider) ExpectedAuthCode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expectedCode
}

func (p *Provider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

func (p *Provider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedCode = code
}

func (p *Provider) SetAccessToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = token
}

// SetIDToken fixes the raw id_token the token endpoint returns. An empty
// value omits id_token from the response.
func (p *Provider) SetIDToken(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idToken = raw
}

func (p *Provider) SetExpiresIn(seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiresIn = seconds
	p.omitExpires = false
}

// OmitExpiresIn drops expires_in from the token response.
func (p *Provider) OmitExpiresIn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitExpires = true
}

func (p *Provider) SetUserinfo(payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userinfo = payload
}

// SignIDToken signs claims with the provider's key and kid. Callers supply
// iss/aud/sub/exp; nothing is added.
func (p *Provider) SignIDToken(claims jwt.MapClaims) string {
	return p.SignIDTokenWithKey(p.signingKey, p.KeyID(), claims)
}

// SignIDTokenWithKey signs claims with an arbitrary key and kid, for tokens
// the JWKS endpoint does not vouch for.
func (p *Provider) SignIDTokenWithKey(key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	p.t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	raw, err := token.SignedString(key)
	require.NoError(p.t, err)
	return raw
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/token":
		p.handleToken(w, req)
	case "/userinfo":
		p.handleUserinfo(w, req)
	case "/jwks":
		p.handleJWKS(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (p *Provider) handleToken(w http.ResponseWriter, req *http.Request) {
	p.TokenRequests.Add(1)

	if err := req.ParseForm(); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "unparsable form body")
		return
	}

	p.mu.Lock()
	clientID, clientSecret := p.clientID, p.clientSecret
	expectedCode, accessToken, idToken := p.expectedCode, p.accessToken, p.idToken
	expiresIn, omitExpires := p.expiresIn, p.omitExpires
	p.mu.Unlock()

	switch {
	case req.FormValue("grant_type") != "authorization_code":
		p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
	case req.FormValue("redirect_uri") == "":
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is required")
	case clientID != "" && (req.FormValue("client_id") != clientID || req.FormValue("client_secret") != clientSecret):
		p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
	case req.FormValue("code") != expectedCode:
		p.writeTokenError(w, http.StatusUnauthorized, "invalid_grant", "the authorization code is invalid")
	default:
		resp := map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
		}
		if idToken != "" {
			resp["id_token"] = idToken
		}
		if !omitExpires {
			resp["expires_in"] = expiresIn
		}
		p.writeJSON(w, http.StatusOK, resp)
	}
}

func (p *Provider) handleUserinfo(w http.ResponseWriter, req *http.Request) {
	p.UserinfoRequests.Add(1)

	p.mu.Lock()
	accessToken := p.accessToken
	payload := p.userinfo
	p.mu.Unlock()

	if req.Header.Get("Authorization") != "Bearer "+accessToken {
		p.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_token"})
		return
	}
	p.writeJSON(w, http.StatusOK, payload)
}

func (p *Provider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	p.JWKSRequests.Add(1)

	jwks := jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &p.signingKey.PublicKey,
				KeyID:     p.KeyID(),
				Algorithm: "RS256",
				Use:       "sig",
			},
		},
	}
	p.writeJSON(w, http.StatusOK, jwks)
}

func (p *Provider) writeTokenError(w http.ResponseWriter, status int, code, description string) {
	p.writeJSON(w, status, map[string]any{
		"error":             code,
		"error_description": description,
	})
}

func (p *Provider) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(p.t, json.NewEncoder(w).Encode(body))
}
