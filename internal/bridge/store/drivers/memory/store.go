// Package memory is an in-process store.Store used by development mode and
// unit tests. Transactions work on a copy of the data and swap it in on
// commit; a single mutex serializes every transaction and every standalone
// call, so the driver behaves like a database with one writer.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
)

var errTxDone = errors.New("memory: transaction has already been committed or rolled back")

type data struct {
	accounts      map[string]domain.Account
	organizations map[string]domain.Organization
	subscriptions map[string]domain.Subscription
	seats         map[string]domain.Seat
	codes         map[string]domain.AuthorizationCode
	sessions      map[string]domain.Session
	credits       []domain.CreditTransaction
	events        map[string]domain.PaymentEvent
}

func newData() *data {
	return &data{
		accounts:      map[string]domain.Account{},
		organizations: map[string]domain.Organization{},
		subscriptions: map[string]domain.Subscription{},
		seats:         map[string]domain.Seat{},
		codes:         map[string]domain.AuthorizationCode{},
		sessions:      map[string]domain.Session{},
		events:        map[string]domain.PaymentEvent{},
	}
}

func (d *data) clone() *data {
	return &data{
		accounts:      maps.Clone(d.accounts),
		organizations: maps.Clone(d.organizations),
		subscriptions: maps.Clone(d.subscriptions),
		seats:         maps.Clone(d.seats),
		codes:         maps.Clone(d.codes),
		sessions:      maps.Clone(d.sessions),
		credits:       slices.Clone(d.credits),
		events:        maps.Clone(d.events),
	}
}

// view runs fn against the data a repo is bound to.
type view interface {
	run(ctx context.Context, fn func(d *data) error) error
}

type Store struct {
	mu   sync.Mutex // held by every transaction and standalone call
	data *data
}

func NewStore() *Store {
	return &Store{data: newData()}
}

func (s *Store) run(ctx context.Context, fn func(d *data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Tx blocks until no other transaction is open.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &txStore{parent: s, data: s.data.clone()}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Accounts() store.Accounts                     { return &accountsRepo{s} }
func (s *Store) Organizations() store.Organizations           { return &organizationsRepo{s} }
func (s *Store) Subscriptions() store.Subscriptions           { return &subscriptionsRepo{s} }
func (s *Store) Seats() store.Seats                           { return &seatsRepo{s} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes { return &authorizationCodesRepo{s} }
func (s *Store) Sessions() store.Sessions                     { return &sessionsRepo{s} }
func (s *Store) Credits() store.CreditLedger                  { return &creditsRepo{s} }
func (s *Store) PaymentEvents() store.PaymentEvents           { return &paymentEventsRepo{s} }

type txStore struct {
	parent *Store
	data   *data
	done   bool
}

func (t *txStore) run(ctx context.Context, fn func(d *data) error) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t.data)
}

func (t *txStore) Commit() error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.parent.data = t.data
	t.parent.mu.Unlock()
	return nil
}

func (t *txStore) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.parent.mu.Unlock()
	return nil
}

func (t *txStore) ApplyMigrations() error         { return nil }
func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, errTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return errTxDone
}

func (t *txStore) Accounts() store.Accounts                     { return &accountsRepo{t} }
func (t *txStore) Organizations() store.Organizations           { return &organizationsRepo{t} }
func (t *txStore) Subscriptions() store.Subscriptions           { return &subscriptionsRepo{t} }
func (t *txStore) Seats() store.Seats                           { return &seatsRepo{t} }
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes { return &authorizationCodesRepo{t} }
func (t *txStore) Sessions() store.Sessions                     { return &sessionsRepo{t} }
func (t *txStore) Credits() store.CreditLedger                  { return &creditsRepo{t} }
func (t *txStore) PaymentEvents() store.PaymentEvents           { return &paymentEventsRepo{t} }
