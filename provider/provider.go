package provider

import "github.com/rteixeira/go-oidc-dashboard/internal/config"

// Endpoints is the fixed set of provider URLs this application talks to.
// The provider publishes these directly; there is no discovery document.
type Endpoints struct {
	Issuer           string
	AuthorizationURL string
	TokenURL         string
	UserinfoURL      string
	JWKSURL          string
}

func EndpointsFromConfig(cfg config.ProviderConfig) Endpoints {
	return Endpoints{
		Issuer:           cfg.GetIssuer(),
		AuthorizationURL: cfg.GetAuthorizationURL(),
		TokenURL:         cfg.GetTokenURL(),
		UserinfoURL:      cfg.GetUserinfoURL(),
		JWKSURL:          cfg.GetJWKSURL(),
	}
}
