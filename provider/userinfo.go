package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
)

var ErrUserinfoFailed = errors.New("userinfo request failed")

// Userinfo is the profile object returned by the provider's userinfo
// endpoint for a valid access token.
type Userinfo struct {
	Subject       string `json:"sub"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Locale        string `json:"locale"`

	// Raw preserves the full payload, including any fields the provider
	// adds beyond the standard profile claims.
	Raw map[string]any `json:"-"`
}

// Client fetches userinfo from the provider. Every request is bounded by the
// http client's timeout; there is no retry.
type Client struct {
	userinfoURL string
	httpClient  *http.Client
}

func NewClient(endpoints Endpoints, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &Client{
		userinfoURL: endpoints.UserinfoURL,
		httpClient:  httpClient,
	}
}

// Userinfo performs a bearer-authenticated GET against the provider's
// userinfo endpoint and decodes the profile payload.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (Userinfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return Userinfo{}, fmt.Errorf("provider.Userinfo: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Userinfo{}, fmt.Errorf("provider.Userinfo: %w: %v", ErrUserinfoFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Userinfo{}, fmt.Errorf("provider.Userinfo: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Userinfo{}, fmt.Errorf("provider.Userinfo: %w: status %d: %s", ErrUserinfoFailed, resp.StatusCode, body)
	}

	var info Userinfo
	if err := json.Unmarshal(body, &info); err != nil {
		return Userinfo{}, fmt.Errorf("provider.Userinfo: decode response: %w", err)
	}
	if err := json.Unmarshal(body, &info.Raw); err != nil {
		return Userinfo{}, fmt.Errorf("provider.Userinfo: decode raw payload: %w", err)
	}
	return info, nil
}
