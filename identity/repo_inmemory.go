package identity

import (
	"sort"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo. The mutex
// also serializes concurrent logins of the same subject, so a stored record
// always reflects one complete write.
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewInMemoryRepo creates a new in-memory identity repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

func (r *InMemoryRepo) UpsertBySubject(record Record) (Record, error) {
	if record.Subject == "" {
		return Record{}, ErrMissingSubject
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.records[record.Subject]
	if ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if record.RawUserinfo != nil {
		raw := make(map[string]any, len(record.RawUserinfo))
		for k, v := range record.RawUserinfo {
			raw[k] = v
		}
		record.RawUserinfo = raw
	}

	r.records[record.Subject] = record
	return record, nil
}

func (r *InMemoryRepo) GetBySubject(subject string) (Record, error) {
	if subject == "" {
		return Record{}, ErrMissingSubject
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[subject]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (r *InMemoryRepo) ListRecentlyUpdated(limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		}
		return records[i].Subject < records[j].Subject
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
