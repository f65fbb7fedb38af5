// Package keyset resolves the provider's public signing keys by key id,
// caching the published JSON Web Key Set process-wide.
package keyset

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownKeyID    = errors.New("unknown signing key id")
	ErrKeySetFetch     = errors.New("key set fetch failed")
	ErrRefreshCooldown = errors.New("key set refresh on cooldown")
)

const defaultCooldown = 30 * time.Second

// Resolver caches the provider's signing keys by key id. A lookup miss
// triggers at most one key-set refresh per cooldown window, so repeated
// probes of a nonexistent key id cannot hammer the provider.
type Resolver struct {
	jwksURL    string
	httpClient *http.Client
	cooldown   time.Duration
	now        func() time.Time

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	lastRefresh time.Time
}

func NewResolver(jwksURL string, httpClient *http.Client, cooldown time.Duration) *Resolver {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Resolver{
		jwksURL:    jwksURL,
		httpClient: httpClient,
		cooldown:   cooldown,
		now:        time.Now,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// ResolveKey returns the cached key for keyID, refreshing the key set once
// if the id is unknown. It fails with ErrUnknownKeyID when the id is still
// absent after a refresh, or when a refresh is not permitted yet.
func (r *Resolver) ResolveKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("keyset.ResolveKey: empty key id: %w", ErrUnknownKeyID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.keys[keyID]; ok {
		return key, nil
	}

	if since := r.now().Sub(r.lastRefresh); since < r.cooldown {
		return nil, fmt.Errorf("keyset.ResolveKey: key %q not cached, %w (next refresh in %s): %w",
			keyID, ErrRefreshCooldown, r.cooldown-since, ErrUnknownKeyID)
	}

	if err := r.refreshLocked(ctx); err != nil {
		return nil, fmt.Errorf("keyset.ResolveKey: %w", err)
	}

	if key, ok := r.keys[keyID]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("keyset.ResolveKey: key %q absent after refresh: %w", keyID, ErrUnknownKeyID)
}

// refreshLocked fetches the key set and replaces the cache. The caller must
// hold r.mu; holding it through the fetch keeps racing lookups converging on
// a single refresh.
func (r *Resolver) refreshLocked(ctx context.Context) error {
	r.lastRefresh = r.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeySetFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrKeySetFetch, resp.StatusCode, body)
	}

	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		pub, ok := k.Key.(*rsa.PublicKey)
		if !ok || k.KeyID == "" {
			continue
		}
		keys[k.KeyID] = pub
	}
	r.keys = keys

	log.Debug().Int("keys", len(keys)).Str("jwks_url", r.jwksURL).Msg("signing key set refreshed")
	return nil
}
