package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlite"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/storetest"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, newFileStore, storetest.Options{Concurrent: true})
}

func TestSQLiteStore_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.ApplyMigrations())
		return s
	}, storetest.Options{})
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, s.ApplyMigrations())
}

func TestSQLiteStore_ForeignKeysEnforced(t *testing.T) {
	s := newFileStore(t)
	now := storetest.Now()

	err := s.Sessions().CreateSession(context.Background(), domain.Session{
		ID:         "sess1",
		SubjectID:  "ghost",
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  now,
		Active:     true,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}
