// Package verifier validates the signed ID token received from the
// provider's token endpoint: RS256 signature against the published key set,
// issuer, audience, and expiry.
package verifier

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rteixeira/go-oidc-dashboard/token/keyset"
)

var (
	ErrInvalidSignature = errors.New("invalid id_token signature")
	ErrIssuerMismatch   = errors.New("id_token issuer mismatch")
	ErrAudienceMismatch = errors.New("id_token audience mismatch")
	ErrTokenExpired     = errors.New("id_token expired")
)

// Claims are the identity assertions carried by a verified ID token.
type Claims struct {
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Locale        string `json:"locale"`
	jwt.RegisteredClaims
}

// KeyResolver returns the public key for a token's key id.
type KeyResolver interface {
	ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error)
}

// Verifier checks ID tokens issued by one provider for one client.
type Verifier struct {
	issuer   string
	clientID string
	keys     KeyResolver
}

func New(issuer, clientID string, keys KeyResolver) *Verifier {
	return &Verifier{
		issuer:   issuer,
		clientID: clientID,
		keys:     keys,
	}
}

// Verify validates the token's signature, issuer, audience, and expiry and
// returns its claims. Failures map onto the verifier's sentinel errors, with
// keyset.ErrUnknownKeyID surfacing unchanged when the signing key cannot be
// resolved.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(rawIDToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header has no kid: %w", ErrInvalidSignature)
		}
		return v.keys.ResolveKey(ctx, kid)
	})
	if err != nil {
		return claims, classify(err)
	}
	return claims, nil
}

// DecodeUnverified extracts claims without any signature or claim checks.
// It exists solely for the explicit degraded fallback; callers own logging
// the unverified-trust event.
func (v *Verifier) DecodeUnverified(rawIDToken string) (Claims, error) {
	var claims Claims
	_, _, err := jwt.NewParser().ParseUnverified(rawIDToken, &claims)
	if err != nil {
		return Claims{}, fmt.Errorf("verifier.DecodeUnverified: %w", err)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, keyset.ErrUnknownKeyID):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrIssuerMismatch, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrAudienceMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}
