package postgres

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlstore"
	"github.com/jackc/pgx/v5/stdlib"
)

// Dialect is the postgres flavour of sqlstore. Seat mutations lock the
// subscription row with FOR UPDATE under READ COMMITTED.
var Dialect = sqlstore.Dialect{
	Name:      "postgres",
	Numbered:  true,
	ForUpdate: " FOR UPDATE",
	MapError:  mapPostgresError,
	TxOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
}

// NewStore opens a pgx pool and exposes it through database/sql.
func NewStore(ctx context.Context, cfg *PoolConfig) (*sqlstore.Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(stdlib.OpenDBFromPool(pool)), nil
}

// NewStoreFromDB wraps an existing handle, used by tests with sqlmock.
func NewStoreFromDB(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, Dialect, applyMigrations)
}
