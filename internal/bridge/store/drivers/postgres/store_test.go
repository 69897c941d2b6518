package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (store.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStoreFromDB(db), mock
}

func TestDialect_Rebind(t *testing.T) {
	got := Dialect.Rebind(`UPDATE sessions SET is_active = ? WHERE id = ? AND is_active = ?`)
	require.Equal(t, `UPDATE sessions SET is_active = $1 WHERE id = $2 AND is_active = $3`, got)
}

func TestLockSubscriptionByOrg_UsesRowLock(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM organization_subscriptions WHERE org_id = \$1 FOR UPDATE`).
		WithArgs("org1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "plan_type", "billing_frequency", "seats_total", "seats_used", "status",
			"external_ref", "customer_ref", "current_period_end", "created_at", "updated_at",
		}).AddRow("sub1", "org1", "teams", "monthly", 2, 1, "active", "sub_ext", nil, nil, now, now))
	mock.ExpectCommit()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.Subscriptions().LockSubscriptionByOrg(ctx, "org1")
		require.NoError(t, err)
		require.Equal(t, 1, sub.Available())
		require.Equal(t, "sub_ext", sub.ExternalRef)
		require.Empty(t, sub.CustomerRef)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAuthorizationCode_ZeroRowsIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM authorization_codes WHERE id = $1 AND code_hash = $2`)).
		WithArgs("code1", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.AuthorizationCodes().DeleteAuthorizationCode(context.Background(), "code1", "hash")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSessionReplaced_LostRaceIsConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE sessions SET is_active = \$1, replaced_by = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Sessions().MarkSessionReplaced(context.Background(), "sess1", "sess2", time.Now())
	require.ErrorIs(t, err, store.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccount_UniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_email_key"})

	err := s.Accounts().CreateAccount(context.Background(), domain.Account{SubjectID: "u1", Email: "u1@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RetriesSerializationFailures(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	serialization := &pgconn.PgError{Code: pgerrcode.SerializationFailure}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts`).WillReturnError(serialization)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := s.WithTx(ctx, func(tx store.Tx) error {
		attempts++
		return tx.Accounts().SetEntitlement(ctx, "u1", domain.PlanTeams, 500, time.Now())
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_DoesNotRetryOtherErrors(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := s.WithTx(ctx, func(tx store.Tx) error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{pgerrcode.UniqueViolation, store.ErrAlreadyExists},
		{pgerrcode.ForeignKeyViolation, store.ErrNotFound},
		{pgerrcode.CheckViolation, store.ErrConflict},
		{pgerrcode.DeadlockDetected, store.ErrSerialization},
		{pgerrcode.LockNotAvailable, store.ErrSerialization},
		{pgerrcode.AdminShutdown, store.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.ErrorIs(t, mapPostgresError(&pgconn.PgError{Code: tt.code}), tt.want)
		})
	}

	plain := errors.New("plain")
	require.Equal(t, plain, mapPostgresError(plain))
	require.NoError(t, mapPostgresError(nil))
}

func TestPoolConfig_Defaults(t *testing.T) {
	cfg := &PoolConfig{}
	require.Error(t, cfg.Validate())

	cfg.ConnString = "postgres://localhost/bridge"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, int32(20), cfg.MaxConns)
	require.Equal(t, 10*time.Second, cfg.ConnectTimeout)

	cfg.MinConns = 50
	require.Error(t, cfg.Validate())
}
