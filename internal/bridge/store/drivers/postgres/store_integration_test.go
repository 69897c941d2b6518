//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlstore"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	connString := setupPostgresContainer(t, ctx)

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := NewStore(ctx, &PoolConfig{ConnString: connString, MaxConns: 8})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(t, s.ApplyMigrations())
		resetTables(t, s)
		return s
	}, storetest.Options{Concurrent: true})
}

// resetTables empties every table; subtests share one container.
func resetTables(t *testing.T, s *sqlstore.Store) {
	t.Helper()
	_, err := s.DB().Exec(`TRUNCATE accounts, organizations, organization_subscriptions, organization_seats,
		authorization_codes, sessions, credit_transactions, payment_events CASCADE`)
	require.NoError(t, err)
}
