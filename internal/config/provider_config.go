package config

import (
	"strconv"
	"strings"
	"time"
)

// ProviderConfig describes the OpenID Connect provider this application
// authenticates against. All endpoints are fixed, published URLs; the
// provider does not expose a discovery document.
type ProviderConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetIssuer() string
	GetAuthorizationURL() string
	GetTokenURL() string
	GetUserinfoURL() string
	GetJWKSURL() string
	GetAllowUnverifiedIDToken() bool
	GetJWKSCooldown() time.Duration
	GetHTTPClientTimeout() time.Duration
}

type Provider struct{}

var _ ProviderConfig = Provider{}

func (Provider) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Provider) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (p Provider) GetRedirectURI() string {
	return GetEnv("OIDC_REDIRECT_URI", EnvVars{}.GetBaseURL()+"/callback")
}

func (Provider) GetScopes() []string {
	return strings.Fields(GetEnv("OIDC_SCOPES", "openid profile email"))
}

func (Provider) GetIssuer() string {
	return GetEnv("OIDC_ISSUER", "https://www.linkedin.com")
}

func (Provider) GetAuthorizationURL() string {
	return GetEnv("OIDC_AUTHORIZATION_URL", "https://www.linkedin.com/oauth/v2/authorization")
}

func (Provider) GetTokenURL() string {
	return GetEnv("OIDC_TOKEN_URL", "https://www.linkedin.com/oauth/v2/accessToken")
}

func (Provider) GetUserinfoURL() string {
	return GetEnv("OIDC_USERINFO_URL", "https://api.linkedin.com/v2/userinfo")
}

func (Provider) GetJWKSURL() string {
	return GetEnv("OIDC_JWKS_URL", "https://www.linkedin.com/oauth/openid/jwks")
}

// GetAllowUnverifiedIDToken reports whether the flow may fall back to an
// unverified ID-token decode when signature verification fails. Off unless
// explicitly enabled; a hardened deployment keeps it off.
func (Provider) GetAllowUnverifiedIDToken() bool {
	v, err := strconv.ParseBool(GetEnv("OIDC_ALLOW_UNVERIFIED_ID_TOKEN", "false"))
	if err != nil {
		return false
	}
	return v
}

func (Provider) GetJWKSCooldown() time.Duration {
	d, err := time.ParseDuration(GetEnv("OIDC_JWKS_COOLDOWN", "30s"))
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (Provider) GetHTTPClientTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv("HTTP_CLIENT_TIMEOUT", "10s"))
	if err != nil {
		return 10 * time.Second
	}
	return d
}
