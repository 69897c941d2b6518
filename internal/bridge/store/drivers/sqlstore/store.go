package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/cenkalti/backoff/v5"
)

// MaxTxAttempts bounds how often WithTx reruns a transaction that failed
// with store.ErrSerialization.
const MaxTxAttempts = 5

// Store is a database/sql backed store.Store. The sqlite and postgres
// drivers construct it with their own Dialect and migration runner.
type Store struct {
	db      *sql.DB
	d       Dialect
	migrate func(*sql.DB) error
}

// New wraps db. migrate may be nil when the schema is managed elsewhere.
func New(db *sql.DB, d Dialect, migrate func(*sql.DB) error) *Store {
	return &Store{db: db, d: d, migrate: migrate}
}

// DB exposes the pool for driver specific tooling.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(s.db)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, s.d.TxOptions)
	if err != nil {
		return nil, s.d.mapError(err)
	}
	return newTx(tx, s.d), nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback. Serialization failures rerun the whole of fn, so fn must
// not have side effects outside the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.withTxOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, store.ErrSerialization) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(MaxTxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.DebugContext(ctx, "retrying transaction",
				slog.String("dialect", s.d.Name),
				slog.Duration("backoff", next),
				slog.Any("error", err),
			)
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}

func (s *Store) withTxOnce(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) q() queries { return queries{db: s.db, d: s.d} }

func (s *Store) Accounts() store.Accounts                     { return &accountsRepo{s.q()} }
func (s *Store) Organizations() store.Organizations           { return &organizationsRepo{s.q()} }
func (s *Store) Subscriptions() store.Subscriptions           { return &subscriptionsRepo{s.q()} }
func (s *Store) Seats() store.Seats                           { return &seatsRepo{s.q()} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return &authorizationCodesRepo{s.q()} }
func (s *Store) Sessions() store.Sessions                     { return &sessionsRepo{s.q()} }
func (s *Store) Credits() store.CreditLedger                  { return &creditsRepo{s.q()} }
func (s *Store) PaymentEvents() store.PaymentEvents           { return &paymentEventsRepo{s.q()} }

type txStore struct {
	tx *sql.Tx
	d  Dialect
}

func newTx(tx *sql.Tx, d Dialect) *txStore {
	return &txStore{tx: tx, d: d}
}

func (t *txStore) Commit() error { return t.d.mapError(t.tx.Commit()) }

func (t *txStore) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *txStore) Close() error { return nil } // nothing to close; caller will commit/rollback and outer DB stays open

// Ping is a no-op for transactions. The connection is already established
// when the transaction is created.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx

func (t *txStore) q() queries { return queries{db: t.tx, d: t.d} }

func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{t.q()} }
func (t *txStore) Organizations() store.Organizations { return &organizationsRepo{t.q()} }
func (t *txStore) Subscriptions() store.Subscriptions { return &subscriptionsRepo{t.q()} }
func (t *txStore) Seats() store.Seats                 { return &seatsRepo{t.q()} }
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes {
	return &authorizationCodesRepo{t.q()}
}
func (t *txStore) Sessions() store.Sessions          { return &sessionsRepo{t.q()} }
func (t *txStore) Credits() store.CreditLedger       { return &creditsRepo{t.q()} }
func (t *txStore) PaymentEvents() store.PaymentEvents { return &paymentEventsRepo{t.q()} }
