package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlstore"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DefaultPragmas are appended to file DSNs that carry no query string.
// _txlock=immediate makes every transaction take the write lock at BEGIN,
// which is what serializes seat mutations per database.
const DefaultPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate&_time_format=sqlite"

// Dialect is the sqlite flavour of sqlstore.
var Dialect = sqlstore.Dialect{
	Name:     "sqlite",
	MapError: mapSQLiteError,
}

// NewStore opens dsn with the modernc driver. A bare path or ":memory:"
// gets DefaultPragmas.
func NewStore(dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is its own database
	if isMemory(dsn) {
		db.SetMaxOpenConns(1)
	}

	// Enforce FKs even if the caller supplied their own pragmas
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlstore.New(db, Dialect, applyMigrations), nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	if isMemory(dsn) {
		// WAL is meaningless in memory
		return dsn + "?_pragma=foreign_keys(1)&_txlock=immediate&_time_format=sqlite"
	}
	return dsn + "?" + DefaultPragmas
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// mapSQLiteError translates sqlite result codes to store sentinels.
func mapSQLiteError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch code := sqliteErr.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK:
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", store.ErrSerialization, err)
	default:
		return err
	}
}
