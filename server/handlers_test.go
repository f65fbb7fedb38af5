package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/rteixeira/go-oidc-dashboard/identity"
	"github.com/rteixeira/go-oidc-dashboard/internal/config"
	"github.com/rteixeira/go-oidc-dashboard/internal/oidctest"
	"github.com/rteixeira/go-oidc-dashboard/provider"
	"github.com/rteixeira/go-oidc-dashboard/server"
	"github.com/rteixeira/go-oidc-dashboard/server/flow"
	"github.com/rteixeira/go-oidc-dashboard/server/sessionstate"
	"github.com/rteixeira/go-oidc-dashboard/token/keyset"
	"github.com/rteixeira/go-oidc-dashboard/token/verifier"
)

const (
	testClientID     = "test-client-1"
	testClientSecret = "test-secret-1"
)

type testApp struct {
	idp    *oidctest.Provider
	ts     *httptest.Server
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	idp := oidctest.Start(t)
	idp.SetClientCreds(testClientID, testClientSecret)
	endpoints := idp.Endpoints()

	t.Setenv("ENV", "TEST")
	t.Setenv("OIDC_CLIENT_ID", testClientID)
	t.Setenv("OIDC_CLIENT_SECRET", testClientSecret)
	t.Setenv("OIDC_REDIRECT_URI", "http://localhost:3000/callback")
	t.Setenv("OIDC_ISSUER", endpoints.Issuer)
	t.Setenv("OIDC_AUTHORIZATION_URL", endpoints.AuthorizationURL)
	t.Setenv("OIDC_TOKEN_URL", endpoints.TokenURL)
	t.Setenv("OIDC_USERINFO_URL", endpoints.UserinfoURL)
	t.Setenv("OIDC_JWKS_URL", endpoints.JWKSURL)

	c := config.New()

	resolver := keyset.NewResolver(endpoints.JWKSURL, nil, c.GetJWKSCooldown())
	idTokenVerifier := verifier.New(endpoints.Issuer, testClientID, resolver)
	userinfoClient := provider.NewClient(endpoints, nil)
	identities := identity.NewInMemoryRepo()
	sessions := sessionstate.NewInMemoryRepo()

	controller := flow.NewController(flow.Config{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURL:  c.GetRedirectURI(),
		Scopes:       c.GetScopes(),
		Endpoints:    endpoints,
	}, idTokenVerifier, userinfoClient, identities, nil)

	srv, err := server.New(c, controller, sessions, identities, userinfoClient)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testApp{
		idp: idp,
		ts:  ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (a *testApp) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := a.client.Get(a.ts.URL + path)
	require.NoError(t, err)
	return resp
}

func (a *testApp) getJSON(t *testing.T, path string, wantStatus int) map[string]any {
	t.Helper()

	resp := a.get(t, path)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// login drives the full authorization-code flow through the HTTP surface
// and leaves the client's cookie jar holding an authenticated session.
func (a *testApp) login(t *testing.T, sub string) {
	t.Helper()

	resp := a.get(t, server.RouteLogin)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	a.idp.SetIDToken(a.idp.SignIDToken(jwt.MapClaims{
		"iss": a.idp.Issuer(),
		"aud": testClientID,
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}))

	resp = a.get(t, server.RouteCallback+"?code="+a.idp.ExpectedAuthCode()+"&state="+state)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestHealthHandler(t *testing.T) {
	a := newTestApp(t)

	body := a.getJSON(t, server.RouteHealth, http.StatusOK)
	require.Equal(t, "OK", body["status"])
	require.Contains(t, body, "timestamp")
	require.Contains(t, body, "uptime_seconds")
}

func TestConfigHandler(t *testing.T) {
	a := newTestApp(t)

	body := a.getJSON(t, server.RouteTestConfig, http.StatusOK)
	require.Equal(t, "OK", body["status"])
	require.Equal(t, "test-cli...", body["client_id"])
	require.Equal(t, false, body["authenticated"])

	endpoints, ok := body["endpoints"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, a.idp.Endpoints().TokenURL, endpoints["token"])
	require.Equal(t, a.idp.Endpoints().JWKSURL, endpoints["jwks"])
}

func TestLoginHandler_RedirectsToProvider(t *testing.T) {
	a := newTestApp(t)

	resp := a.get(t, server.RouteLogin)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "code", location.Query().Get("response_type"))
	require.Equal(t, testClientID, location.Query().Get("client_id"))
	require.NotEmpty(t, location.Query().Get("state"))

	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)
	require.Equal(t, "session_id", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)
}

func TestCallbackHandler_NoPendingFlow(t *testing.T) {
	a := newTestApp(t)

	resp := a.get(t, server.RouteCallback+"?code=whatever&state=whatever")
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "Sign-in failed")
}

func TestCallbackHandler_StateMismatch(t *testing.T) {
	a := newTestApp(t)

	resp := a.get(t, server.RouteLogin)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = a.get(t, server.RouteCallback+"?code="+a.idp.ExpectedAuthCode()+"&state=forged")
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.EqualValues(t, 0, a.idp.TokenRequests.Load())
}

func TestCallbackHandler_ProviderDenied(t *testing.T) {
	a := newTestApp(t)

	resp := a.get(t, server.RouteLogin)
	resp.Body.Close()

	resp = a.get(t, server.RouteCallback+"?error=access_denied&error_description=User+cancelled")
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "access_denied")
}

func TestFullLoginFlow(t *testing.T) {
	a := newTestApp(t)
	a.login(t, "U1")

	// Dashboard renders the signed-in user.
	resp := a.get(t, "/")
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(page), "Ana")

	body := a.getJSON(t, server.RouteTestConfig, http.StatusOK)
	require.Equal(t, true, body["authenticated"])

	body = a.getJSON(t, server.RouteUserinfo, http.StatusOK)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "U1", data["sub"])

	body = a.getJSON(t, server.RouteIDToken, http.StatusOK)
	payload, ok := body["payload"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "U1", payload["sub"])

	body = a.getJSON(t, server.RouteDBUsers, http.StatusOK)
	require.EqualValues(t, 1, body["count"])
}

func TestUserinfoHandler_Unauthenticated(t *testing.T) {
	a := newTestApp(t)

	body := a.getJSON(t, server.RouteUserinfo, http.StatusUnauthorized)
	require.Equal(t, "not authenticated", body["error"])
}

func TestIDTokenHandler_Unauthenticated(t *testing.T) {
	a := newTestApp(t)

	body := a.getJSON(t, server.RouteIDToken, http.StatusUnauthorized)
	require.Equal(t, "no id_token in session", body["error"])
}

func TestLogoutHandler(t *testing.T) {
	a := newTestApp(t)
	a.login(t, "U1")

	resp := a.get(t, server.RouteLogout)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	a.getJSON(t, server.RouteUserinfo, http.StatusUnauthorized)

	// Logout clears the session, not the stored identity records.
	body := a.getJSON(t, server.RouteDBUsers, http.StatusOK)
	require.EqualValues(t, 1, body["count"])
}

func TestStaticAssets(t *testing.T) {
	a := newTestApp(t)

	resp := a.get(t, "/css/app.css")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.get(t, "/js/app.js")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
