package verifier_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rteixeira/go-oidc-dashboard/token/keyset"
	"github.com/rteixeira/go-oidc-dashboard/token/verifier"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://idp.example.com"
	testClientID = "test-client-1"
	testKid      = "test-kid-1"
)

type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) ResolveKey(_ context.Context, keyID string) (*rsa.PublicKey, error) {
	if key, ok := s[keyID]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key %q: %w", keyID, keyset.ErrUnknownKeyID)
}

type fixture struct {
	key      *rsa.PrivateKey
	verifier *verifier.Verifier
}

func setup(t *testing.T) *fixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return &fixture{
		key:      key,
		verifier: verifier.New(testIssuer, testClientID, staticKeys{testKid: &key.PublicKey}),
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(key)
	require.NoError(t, err)
	return raw
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testClientID,
		"sub":   "U1",
		"name":  "Ana",
		"email": "ana@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func TestVerify_ValidToken(t *testing.T) {
	f := setup(t)

	claims, err := f.verifier.Verify(context.Background(), signToken(t, f.key, testKid, validClaims()))
	require.NoError(t, err)
	require.Equal(t, "U1", claims.Subject)
	require.Equal(t, "Ana", claims.Name)
	require.Equal(t, "ana@x.com", claims.Email)
}

func TestVerify_AudienceMismatch(t *testing.T) {
	f := setup(t)

	// Signature is valid; the audience check alone must reject the token.
	c := validClaims()
	c["aud"] = "some-other-client"

	_, err := f.verifier.Verify(context.Background(), signToken(t, f.key, testKid, c))
	require.ErrorIs(t, err, verifier.ErrAudienceMismatch)
}

func TestVerify_IssuerMismatch(t *testing.T) {
	f := setup(t)

	c := validClaims()
	c["iss"] = "https://evil.example.com"

	_, err := f.verifier.Verify(context.Background(), signToken(t, f.key, testKid, c))
	require.ErrorIs(t, err, verifier.ErrIssuerMismatch)
}

func TestVerify_Expired(t *testing.T) {
	f := setup(t)

	c := validClaims()
	c["exp"] = time.Now().Add(-time.Hour).Unix()

	_, err := f.verifier.Verify(context.Background(), signToken(t, f.key, testKid, c))
	require.ErrorIs(t, err, verifier.ErrTokenExpired)
}

func TestVerify_UnknownKeyID(t *testing.T) {
	f := setup(t)

	_, err := f.verifier.Verify(context.Background(), signToken(t, f.key, "rotated-away-kid", validClaims()))
	require.ErrorIs(t, err, keyset.ErrUnknownKeyID)
}

func TestVerify_WrongSigningKey(t *testing.T) {
	f := setup(t)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	// Correct kid, but the payload was signed by a different key.
	_, err = f.verifier.Verify(context.Background(), signToken(t, other, testKid, validClaims()))
	require.ErrorIs(t, err, verifier.ErrInvalidSignature)
}

func TestVerify_WrongAlgorithm(t *testing.T) {
	f := setup(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	tok.Header["kid"] = testKid
	raw, err := tok.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = f.verifier.Verify(context.Background(), raw)
	require.ErrorIs(t, err, verifier.ErrInvalidSignature)
}

func TestDecodeUnverified(t *testing.T) {
	f := setup(t)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	// Signed by an unknown key: Verify rejects it, the unverified decode
	// still yields the claims.
	raw := signToken(t, other, "unknown-kid", validClaims())

	_, err = f.verifier.Verify(context.Background(), raw)
	require.Error(t, err)

	claims, err := f.verifier.DecodeUnverified(raw)
	require.NoError(t, err)
	require.Equal(t, "U1", claims.Subject)
	require.Equal(t, "Ana", claims.Name)
}
