package identity_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rteixeira/go-oidc-dashboard/identity"
	"github.com/stretchr/testify/require"
)

func TestUpsertBySubject_CreatesThenUpdates(t *testing.T) {
	repo := identity.NewInMemoryRepo()

	first, err := repo.UpsertBySubject(identity.Record{
		Subject: "U1",
		Name:    "Ana",
		Email:   "ana@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, "U1", first.Subject)
	require.False(t, first.CreatedAt.IsZero())
	require.Equal(t, first.CreatedAt, first.UpdatedAt)

	time.Sleep(5 * time.Millisecond)

	second, err := repo.UpsertBySubject(identity.Record{
		Subject:     "U1",
		Name:        "Ana Silva",
		Email:       "ana@x.com",
		AccessToken: "AT2",
	})
	require.NoError(t, err)
	require.Equal(t, first.CreatedAt, second.CreatedAt, "created timestamp must survive re-login")
	require.True(t, second.UpdatedAt.After(first.UpdatedAt), "update timestamp must advance")
	require.Equal(t, "Ana Silva", second.Name)
	require.Equal(t, "AT2", second.AccessToken)

	records, err := repo.ListRecentlyUpdated(50)
	require.NoError(t, err)
	require.Len(t, records, 1, "same subject must never duplicate")
}

func TestUpsertBySubject_EmptySubject(t *testing.T) {
	repo := identity.NewInMemoryRepo()

	_, err := repo.UpsertBySubject(identity.Record{Name: "No Subject"})
	require.ErrorIs(t, err, identity.ErrMissingSubject)
}

func TestGetBySubject(t *testing.T) {
	repo := identity.NewInMemoryRepo()

	_, err := repo.GetBySubject("U1")
	require.ErrorIs(t, err, identity.ErrNotFound)

	_, err = repo.UpsertBySubject(identity.Record{Subject: "U1", Name: "Ana"})
	require.NoError(t, err)

	record, err := repo.GetBySubject("U1")
	require.NoError(t, err)
	require.Equal(t, "Ana", record.Name)
}

func TestListRecentlyUpdated_Order(t *testing.T) {
	repo := identity.NewInMemoryRepo()

	for i := 0; i < 3; i++ {
		_, err := repo.UpsertBySubject(identity.Record{Subject: fmt.Sprintf("U%d", i)})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	records, err := repo.ListRecentlyUpdated(50)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "U2", records[0].Subject, "most recently updated first")
	require.Equal(t, "U0", records[2].Subject)

	limited, err := repo.ListRecentlyUpdated(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestUpsertBySubject_ConcurrentSameSubject(t *testing.T) {
	repo := identity.NewInMemoryRepo()

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := repo.UpsertBySubject(identity.Record{
				Subject:     "U1",
				Name:        fmt.Sprintf("Writer %d", i),
				AccessToken: fmt.Sprintf("AT%d", i),
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	record, err := repo.GetBySubject("U1")
	require.NoError(t, err)

	// Last writer wins, but the stored state must be one complete write:
	// name and token always come from the same login.
	var matched bool
	for i := 0; i < writers; i++ {
		if record.Name == fmt.Sprintf("Writer %d", i) && record.AccessToken == fmt.Sprintf("AT%d", i) {
			matched = true
			break
		}
	}
	require.True(t, matched, "record must not interleave two partial writes: %+v", record)
}
