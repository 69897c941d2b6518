package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures the few places where the SQL engines disagree. Queries
// are written with ? placeholders and rebound per dialect.
type Dialect struct {
	// Name is used in log lines and error messages.
	Name string

	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool

	// ForUpdate is appended to row-locking reads. SQLite has no row locks and
	// relies on BEGIN IMMEDIATE taking the write lock up front.
	ForUpdate string

	// MapError translates driver errors into store sentinels.
	MapError func(error) error

	// TxOptions are passed to BeginTx.
	TxOptions *sql.TxOptions
}

// Rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) mapError(err error) error {
	if err == nil || d.MapError == nil {
		return err
	}
	return d.MapError(err)
}
