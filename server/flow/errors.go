package flow

import (
	"errors"
	"fmt"
)

var (
	ErrProviderDenied           = errors.New("provider denied authorization")
	ErrMissingAuthorizationCode = errors.New("authorization code missing from callback")
	ErrStateMismatch            = errors.New("callback state does not match pending state")
	ErrTokenExchangeFailed      = errors.New("token exchange failed")
	ErrUserinfoFetchFailed      = errors.New("userinfo fetch failed")
	ErrMissingSubject           = errors.New("no subject identifier in userinfo or id_token claims")
	ErrPersistence              = errors.New("identity record persistence failed")
)

// Error is the discriminated failure a callback surfaces to its caller:
// the kind, plus whatever code/description the provider supplied, so the
// presentation layer can render a diagnostic without the flow knowing any
// rendering format.
type Error struct {
	Kind        error
	Code        string
	Description string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Description)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}
