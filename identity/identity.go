package identity

import "time"

// Record holds the persisted profile of one authenticated subject.
// Exactly one Record exists per subject; repeated logins update it in place.
type Record struct {
	Subject       string         `json:"sub"`
	Name          string         `json:"name,omitempty"`
	GivenName     string         `json:"given_name,omitempty"`
	FamilyName    string         `json:"family_name,omitempty"`
	Picture       string         `json:"picture,omitempty"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	Locale        string         `json:"locale,omitempty"`
	AccessToken   string         `json:"-"` // never serialize
	IDToken       string         `json:"-"` // never serialize
	TokenExpiry   int64          `json:"-"` // absolute epoch seconds
	RawUserinfo   map[string]any `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
