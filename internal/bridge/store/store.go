package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict reports a conditional write that matched no row because
	// another writer got there first.
	ErrConflict = errors.New("store: conflict")

	// ErrSerialization reports a transient lock or serialization failure.
	// The whole transaction may be retried.
	ErrSerialization = errors.New("store: serialization failure")

	// ErrUnavailable reports the database could not be reached.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres, memory) implement this. It exposes sub-repositories so that a
// transaction hands out the same repos bound to the transaction.
type Store interface {
	Accounts() Accounts
	Organizations() Organizations
	Subscriptions() Subscriptions
	Seats() Seats
	AuthorizationCodes() AuthorizationCodes
	Sessions() Sessions
	Credits() CreditLedger
	PaymentEvents() PaymentEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccount returns an account by subject id.
	GetAccount(ctx context.Context, subjectID string) (domain.Account, error)

	// GetAccountByEmail is used when assigning a seat by email.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// CreateAccount inserts a new account. Duplicate subject or email
	// returns ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error

	// SetEntitlement overwrites the effective plan and credit balance.
	SetEntitlement(ctx context.Context, subjectID, planType string, credits int64, now time.Time) error
}

type Organizations interface {
	CreateOrganization(ctx context.Context, o domain.Organization) error
	GetOrganization(ctx context.Context, id string) (domain.Organization, error)
}

type Subscriptions interface {
	CreateSubscription(ctx context.Context, s domain.Subscription) error

	// GetSubscriptionByOrg reads without locking.
	GetSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error)

	// LockSubscriptionByOrg reads the subscription and holds a row lock on it
	// until the surrounding transaction ends. All seat mutations for an
	// organization start here.
	LockSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error)

	// GetSubscriptionByExternalRef resolves a payment processor subscription.
	GetSubscriptionByExternalRef(ctx context.Context, ref string) (domain.Subscription, error)

	// UpdateSeatCounts writes seats_total and seats_used.
	UpdateSeatCounts(ctx context.Context, id string, seatsTotal, seatsUsed int, now time.Time) error

	// UpdateSubscriptionStatus writes status and the current billing period end.
	UpdateSubscriptionStatus(ctx context.Context, id, status string, periodEnd *time.Time, now time.Time) error

	// SetCustomerRef stores the payment processor customer id.
	SetCustomerRef(ctx context.Context, id, customerRef string, now time.Time) error
}

type Seats interface {
	CreateSeat(ctx context.Context, s domain.Seat) error
	GetSeat(ctx context.Context, id string) (domain.Seat, error)
	GetSeatByOrgEmail(ctx context.Context, orgID, email string) (domain.Seat, error)
	GetSeatByOrgSubject(ctx context.Context, orgID, subjectID string) (domain.Seat, error)

	// GetActiveSeatBySubject finds the subject's active seat in any organization.
	GetActiveSeatBySubject(ctx context.Context, subjectID string) (domain.Seat, error)

	// ListPendingSeatsByEmail returns invitations waiting for email to
	// register, oldest first.
	ListPendingSeatsByEmail(ctx context.Context, email string) ([]domain.Seat, error)

	// ListSeatsByOrg returns every seat of an organization, oldest first.
	ListSeatsByOrg(ctx context.Context, orgID string) ([]domain.Seat, error)

	// UpdateSeat overwrites the mutable fields of a seat.
	UpdateSeat(ctx context.Context, s domain.Seat) error

	// ListExpiredActiveSeats returns active seats whose expires_at is before now.
	ListExpiredActiveSeats(ctx context.Context, now time.Time) ([]domain.Seat, error)
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a pending handoff. A duplicate state
	// returns ErrAlreadyExists.
	CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error

	// GetAuthorizationCodeByState fetches a pending handoff.
	GetAuthorizationCodeByState(ctx context.Context, state string) (domain.AuthorizationCode, error)

	// ConfirmAuthorizationCode attaches subjectID and the one-time code
	// fingerprint. It only succeeds while the row is unconfirmed or already
	// belongs to subjectID, otherwise ErrConflict.
	ConfirmAuthorizationCode(ctx context.Context, id, subjectID, codeHash string, now time.Time) error

	// DeleteAuthorizationCode removes the row only if its code fingerprint
	// still equals codeHash. Zero rows affected returns ErrNotFound, which is
	// how a losing concurrent exchange finds out.
	DeleteAuthorizationCode(ctx context.Context, id, codeHash string) error

	// DeleteAuthorizationCodeByID removes the row unconditionally.
	DeleteAuthorizationCodeByID(ctx context.Context, id string) error

	// DeleteExpiredAuthorizationCodes removes codes that expired before now.
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns a session in any state.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// GetActiveSession returns the session only if it is active and not
	// expired at now, otherwise ErrNotFound.
	GetActiveSession(ctx context.Context, id string, now time.Time) (domain.Session, error)

	// MarkSessionReplaced deactivates oldID and points it at successorID.
	// ErrConflict if oldID was no longer active. Callers pair it with
	// CreateSession inside one transaction.
	MarkSessionReplaced(ctx context.Context, oldID, successorID string, now time.Time) error

	// RevokeSession deactivates the session. Revoking twice is not an error.
	RevokeSession(ctx context.Context, id string, now time.Time) error

	// TouchSession bumps last_used_at.
	TouchSession(ctx context.Context, id string, now time.Time) error

	// DeleteStaleSessions removes sessions expired before cutoff and inactive
	// sessions last used before cutoff.
	DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

type CreditLedger interface {
	AppendCreditTransaction(ctx context.Context, t domain.CreditTransaction) error

	// ListCreditTransactions returns the newest entries first.
	ListCreditTransactions(ctx context.Context, subjectID string, limit int) ([]domain.CreditTransaction, error)
}

type PaymentEvents interface {
	// RecordPaymentEvent stores a webhook event id. A redelivered event
	// returns ErrAlreadyExists.
	RecordPaymentEvent(ctx context.Context, e domain.PaymentEvent) error
}
