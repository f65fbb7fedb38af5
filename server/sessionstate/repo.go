package sessionstate

import "errors"

var ErrSessionNotFound = errors.New("session not found")

type Repo interface {
	Get(sessionID string) (*Session, error)
	Put(sessionID string, session *Session) error
	Delete(sessionID string) error
}
