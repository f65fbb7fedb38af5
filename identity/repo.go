package identity

import "errors"

var (
	ErrMissingSubject = errors.New("missing subject identifier")
	ErrNotFound       = errors.New("identity record not found")
)

// Repo is the storage contract the flow depends on. The concrete engine is
// replaceable; the flow only needs upsert-by-subject and ordered listing.
type Repo interface {
	// UpsertBySubject creates the record on first login and overwrites the
	// profile and token fields on every subsequent login, preserving
	// CreatedAt and refreshing UpdatedAt. It returns the stored record.
	UpsertBySubject(record Record) (Record, error)
	GetBySubject(subject string) (Record, error)
	// ListRecentlyUpdated returns up to limit records, most recently
	// updated first.
	ListRecentlyUpdated(limit int) ([]Record, error)
}
