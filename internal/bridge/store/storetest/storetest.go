// Package storetest is a conformance suite every store.Store driver runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated store.
type Factory func(t *testing.T) store.Store

// Options tunes the suite for driver limitations.
type Options struct {
	// Concurrent enables the tests that race goroutines against the store.
	Concurrent bool
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory, opts Options) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("Subscriptions", func(t *testing.T) { testSubscriptions(t, newStore(t)) })
	t.Run("Seats", func(t *testing.T) { testSeats(t, newStore(t)) })
	t.Run("AuthorizationCodes", func(t *testing.T) { testAuthorizationCodes(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("Credits", func(t *testing.T) { testCredits(t, newStore(t)) })
	t.Run("PaymentEvents", func(t *testing.T) { testPaymentEvents(t, newStore(t)) })
	t.Run("WithTx", func(t *testing.T) { testWithTx(t, newStore(t)) })
	if opts.Concurrent {
		t.Run("ConcurrentCodeDelete", func(t *testing.T) { testConcurrentCodeDelete(t, newStore(t)) })
		t.Run("ConcurrentSeatCounts", func(t *testing.T) { testConcurrentSeatCounts(t, newStore(t)) })
	}
}

// Now is truncated to what every backend can store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// SeedAccount inserts a starter account.
func SeedAccount(t *testing.T, s store.Store, subjectID, email string) domain.Account {
	t.Helper()
	now := Now()
	a := domain.Account{
		SubjectID:    subjectID,
		Email:        email,
		PersonalPlan: domain.PlanStarter,
		PlanType:     domain.PlanStarter,
		Credits:      50,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))
	return a
}

// SeedOrg inserts an organization owned by ownerID with an active
// subscription of seatsTotal seats.
func SeedOrg(t *testing.T, s store.Store, orgID, ownerID string, seatsTotal int) domain.Subscription {
	t.Helper()
	ctx := context.Background()
	now := Now()

	require.NoError(t, s.Organizations().CreateOrganization(ctx, domain.Organization{
		ID: orgID, Name: orgID, OwnerID: ownerID, CreatedAt: now,
	}))
	sub := domain.Subscription{
		ID:               idx.New().String(),
		OrgID:            orgID,
		PlanType:         domain.PlanTeams,
		BillingFrequency: domain.BillingMonthly,
		SeatsTotal:       seatsTotal,
		Status:           domain.SubscriptionActive,
		ExternalRef:      "sub_" + orgID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, s.Subscriptions().CreateSubscription(ctx, sub))
	return sub
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := SeedAccount(t, s, "u1", "u1@example.com")

	got, err := s.Accounts().GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, a.Email, got.Email)
	require.Equal(t, int64(50), got.Credits)
	require.WithinDuration(t, a.CreatedAt, got.CreatedAt, time.Millisecond)

	got, err = s.Accounts().GetAccountByEmail(ctx, "u1@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", got.SubjectID)

	_, err = s.Accounts().GetAccount(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := a
	dup.SubjectID = "u2"
	require.ErrorIs(t, s.Accounts().CreateAccount(ctx, dup), store.ErrAlreadyExists)

	require.NoError(t, s.Accounts().SetEntitlement(ctx, "u1", domain.PlanTeams, 500, Now()))
	got, err = s.Accounts().GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, domain.PlanTeams, got.PlanType)
	require.Equal(t, domain.PlanStarter, got.PersonalPlan)
	require.Equal(t, int64(500), got.Credits)

	require.ErrorIs(t, s.Accounts().SetEntitlement(ctx, "nobody", domain.PlanTeams, 1, Now()), store.ErrNotFound)
}

func testSubscriptions(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "owner", "owner@example.com")
	sub := SeedOrg(t, s, "org1", "owner", 2)

	got, err := s.Subscriptions().GetSubscriptionByOrg(ctx, "org1")
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)
	require.Equal(t, 2, got.Available())
	require.Nil(t, got.CurrentPeriodEnd)

	got, err = s.Subscriptions().GetSubscriptionByExternalRef(ctx, "sub_org1")
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)

	_, err = s.Subscriptions().GetSubscriptionByOrg(ctx, "org-missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Subscriptions().UpdateSeatCounts(ctx, sub.ID, 3, 1, Now()))
	require.ErrorIs(t, s.Subscriptions().UpdateSeatCounts(ctx, sub.ID, 1, 2, Now()), store.ErrConflict)

	end := Now().Add(30 * 24 * time.Hour)
	require.NoError(t, s.Subscriptions().UpdateSubscriptionStatus(ctx, sub.ID, domain.SubscriptionPastDue, &end, Now()))
	require.NoError(t, s.Subscriptions().SetCustomerRef(ctx, sub.ID, "cus_1", Now()))

	err = s.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.Subscriptions().LockSubscriptionByOrg(ctx, "org1")
		require.NoError(t, err)
		require.Equal(t, 3, locked.SeatsTotal)
		require.Equal(t, 1, locked.SeatsUsed)
		require.Equal(t, domain.SubscriptionPastDue, locked.Status)
		require.Equal(t, "cus_1", locked.CustomerRef)
		require.NotNil(t, locked.CurrentPeriodEnd)
		require.WithinDuration(t, end, *locked.CurrentPeriodEnd, time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	second := sub
	second.ID = idx.New().String()
	second.ExternalRef = ""
	require.ErrorIs(t, s.Subscriptions().CreateSubscription(ctx, second), store.ErrAlreadyExists)
}

func testSeats(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "owner", "owner@example.com")
	SeedAccount(t, s, "alice", "alice@example.com")
	SeedOrg(t, s, "org1", "owner", 5)
	SeedOrg(t, s, "org2", "owner", 5)

	now := Now()
	alice := "alice"
	seat := domain.Seat{
		ID:             idx.New().String(),
		OrgID:          "org1",
		SubjectID:      &alice,
		Email:          "alice@example.com",
		Role:           domain.RoleMember,
		Status:         domain.SeatActive,
		CreditsGranted: 500,
		AssignedAt:     now,
	}
	require.NoError(t, s.Seats().CreateSeat(ctx, seat))

	got, err := s.Seats().GetSeatByOrgEmail(ctx, "org1", "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, seat.ID, got.ID)
	require.NotNil(t, got.SubjectID)
	require.Equal(t, "alice", *got.SubjectID)

	got, err = s.Seats().GetActiveSeatBySubject(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, seat.ID, got.ID)

	got, err = s.Seats().GetSeatByOrgSubject(ctx, "org1", "alice")
	require.NoError(t, err)
	require.Equal(t, seat.ID, got.ID)

	// Same email twice in one org
	dup := seat
	dup.ID = idx.New().String()
	dup.SubjectID = nil
	dup.Status = domain.SeatPending
	require.ErrorIs(t, s.Seats().CreateSeat(ctx, dup), store.ErrAlreadyExists)

	// A second active seat for the same subject in another org
	other := seat
	other.ID = idx.New().String()
	other.OrgID = "org2"
	require.ErrorIs(t, s.Seats().CreateSeat(ctx, other), store.ErrAlreadyExists)

	revokedAt := Now()
	seat.Status = domain.SeatRevoked
	seat.RevokedAt = &revokedAt
	seat.CreditsGranted = 0
	require.NoError(t, s.Seats().UpdateSeat(ctx, seat))

	_, err = s.Seats().GetActiveSeatBySubject(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Once revoked the subject may be seated elsewhere
	require.NoError(t, s.Seats().CreateSeat(ctx, other))

	seats, err := s.Seats().ListSeatsByOrg(ctx, "org1")
	require.NoError(t, err)
	require.Len(t, seats, 1)
	require.Equal(t, domain.SeatRevoked, seats[0].Status)
	require.NotNil(t, seats[0].RevokedAt)

	expiry := now.Add(-time.Minute)
	other.ExpiresAt = &expiry
	require.NoError(t, s.Seats().UpdateSeat(ctx, other))

	expired, err := s.Seats().ListExpiredActiveSeats(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, other.ID, expired[0].ID)

	// Invitations for an email nobody registered yet
	for i, org := range []string{"org2", "org1"} {
		require.NoError(t, s.Seats().CreateSeat(ctx, domain.Seat{
			ID:         idx.New().String(),
			OrgID:      org,
			Email:      "newhire@example.com",
			Role:       domain.RoleMember,
			Status:     domain.SeatPending,
			AssignedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	pending, err := s.Seats().ListPendingSeatsByEmail(ctx, "newhire@example.com")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "org2", pending[0].OrgID)
	require.Nil(t, pending[0].SubjectID)

	pending, err = s.Seats().ListPendingSeatsByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = s.Seats().GetSeat(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.Seats().UpdateSeat(ctx, domain.Seat{ID: "missing", OrgID: "org1", Email: "x@example.com", AssignedAt: now}), store.ErrNotFound)
}

func newCode(state string, now time.Time) domain.AuthorizationCode {
	return domain.AuthorizationCode{
		ID:            idx.New().String(),
		State:         state,
		CodeChallenge: "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CreatedAt:     now,
		ExpiresAt:     now.Add(domain.AuthorizationCodeTTL),
	}
}

func testAuthorizationCodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "u1", "u1@example.com")
	SeedAccount(t, s, "u2", "u2@example.com")
	now := Now()

	code := newCode("s1", now)
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code))
	require.ErrorIs(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, newCode("s1", now)), store.ErrAlreadyExists)

	got, err := s.AuthorizationCodes().GetAuthorizationCodeByState(ctx, "s1")
	require.NoError(t, err)
	require.False(t, got.Confirmed())
	require.Nil(t, got.SubjectID)

	require.NoError(t, s.AuthorizationCodes().ConfirmAuthorizationCode(ctx, code.ID, "u1", "hash-1", now))
	// Same subject may confirm again and replace the code
	require.NoError(t, s.AuthorizationCodes().ConfirmAuthorizationCode(ctx, code.ID, "u1", "hash-2", now))
	require.ErrorIs(t, s.AuthorizationCodes().ConfirmAuthorizationCode(ctx, code.ID, "u2", "hash-3", now), store.ErrConflict)

	got, err = s.AuthorizationCodes().GetAuthorizationCodeByState(ctx, "s1")
	require.NoError(t, err)
	require.True(t, got.Confirmed())
	require.Equal(t, "u1", *got.SubjectID)
	require.Equal(t, "hash-2", *got.CodeHash)

	require.ErrorIs(t, s.AuthorizationCodes().DeleteAuthorizationCode(ctx, code.ID, "hash-1"), store.ErrNotFound)
	require.NoError(t, s.AuthorizationCodes().DeleteAuthorizationCode(ctx, code.ID, "hash-2"))
	require.ErrorIs(t, s.AuthorizationCodes().DeleteAuthorizationCode(ctx, code.ID, "hash-2"), store.ErrNotFound)

	_, err = s.AuthorizationCodes().GetAuthorizationCodeByState(ctx, "s1")
	require.ErrorIs(t, err, store.ErrNotFound)

	stale := newCode("s-stale", now.Add(-time.Hour))
	fresh := newCode("s-fresh", now)
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, stale))
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, fresh))

	n, err := s.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, s.AuthorizationCodes().DeleteAuthorizationCodeByID(ctx, fresh.ID))
	require.ErrorIs(t, s.AuthorizationCodes().DeleteAuthorizationCodeByID(ctx, fresh.ID), store.ErrNotFound)
}

func newSession(id, subjectID string, now time.Time) domain.Session {
	return domain.Session{
		ID:          id,
		SubjectID:   subjectID,
		AccessHash:  "a-" + id,
		RefreshHash: "r-" + id,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(30 * 24 * time.Hour),
		Active:      true,
	}
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "u1", "u1@example.com")
	now := Now()

	require.NoError(t, s.Sessions().CreateSession(ctx, newSession("sess1", "u1", now)))
	require.ErrorIs(t, s.Sessions().CreateSession(ctx, newSession("sess1", "u1", now)), store.ErrAlreadyExists)

	got, err := s.Sessions().GetActiveSession(ctx, "sess1", now)
	require.NoError(t, err)
	require.True(t, got.Active)
	require.Equal(t, "r-sess1", got.RefreshHash)

	_, err = s.Sessions().GetActiveSession(ctx, "sess1", now.Add(31*24*time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().MarkSessionReplaced(ctx, "sess1", "sess2", now); err != nil {
			return err
		}
		return tx.Sessions().CreateSession(ctx, newSession("sess2", "u1", now))
	})
	require.NoError(t, err)

	require.ErrorIs(t, s.Sessions().MarkSessionReplaced(ctx, "sess1", "sess3", now), store.ErrConflict)

	old, err := s.Sessions().GetSession(ctx, "sess1")
	require.NoError(t, err)
	require.False(t, old.Active)
	require.NotNil(t, old.ReplacedBy)
	require.Equal(t, "sess2", *old.ReplacedBy)

	_, err = s.Sessions().GetActiveSession(ctx, "sess1", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Sessions().TouchSession(ctx, "sess2", now.Add(time.Minute)))
	require.NoError(t, s.Sessions().RevokeSession(ctx, "sess2", now))
	require.NoError(t, s.Sessions().RevokeSession(ctx, "sess2", now))
	require.ErrorIs(t, s.Sessions().RevokeSession(ctx, "missing", now), store.ErrNotFound)

	require.NoError(t, s.Sessions().CreateSession(ctx, newSession("sess3", "u1", now)))
	require.NoError(t, s.Sessions().RevokeSession(ctx, "sess3", now))

	n, err := s.Sessions().DeleteStaleSessions(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func testCredits(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "u1", "u1@example.com")
	base := Now()

	org := "org1"
	for i, delta := range []int64{50, 450, -450} {
		tx := domain.CreditTransaction{
			ID:           idx.New().String(),
			SubjectID:    "u1",
			Delta:        delta,
			BalanceAfter: 50 + int64(i)*100,
			Reason:       domain.CreditReasonSeatGrant,
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if i > 0 {
			tx.OrgID = &org
		}
		require.NoError(t, s.Credits().AppendCreditTransaction(ctx, tx))
	}

	list, err := s.Credits().ListCreditTransactions(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(-450), list[0].Delta)
	require.Equal(t, int64(450), list[1].Delta)
	require.NotNil(t, list[0].OrgID)

	list, err = s.Credits().ListCreditTransactions(ctx, "u2", 10)
	require.NoError(t, err)
	require.Empty(t, list)

	// Same timestamp, ids out of order: insertion order still wins
	SeedAccount(t, s, "u3", "u3@example.com")
	at := base.Add(time.Hour)
	for _, e := range []struct{ id, reason string }{
		{"01ZZZZZZZZZZZZZZZZZZZZZZZZ", domain.CreditReasonSignup},
		{"01AAAAAAAAAAAAAAAAAAAAAAAA", domain.CreditReasonSeatGrant},
	} {
		require.NoError(t, s.Credits().AppendCreditTransaction(ctx, domain.CreditTransaction{
			ID:        e.id,
			SubjectID: "u3",
			Delta:     1,
			Reason:    e.reason,
			CreatedAt: at,
		}))
	}
	list, err = s.Credits().ListCreditTransactions(ctx, "u3", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.CreditReasonSeatGrant, list[0].Reason)
	require.Equal(t, domain.CreditReasonSignup, list[1].Reason)
}

func testPaymentEvents(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := domain.PaymentEvent{EventID: "evt_1", Type: "checkout.completed", ProcessedAt: Now()}
	require.NoError(t, s.PaymentEvents().RecordPaymentEvent(ctx, e))
	require.ErrorIs(t, s.PaymentEvents().RecordPaymentEvent(ctx, e), store.ErrAlreadyExists)
}

func testWithTx(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		SeedAccount(t, tx, "u1", "u1@example.com")
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Accounts().GetAccount(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		SeedAccount(t, tx, "u1", "u1@example.com")
		return nil
	})
	require.NoError(t, err)

	_, err = s.Accounts().GetAccount(ctx, "u1")
	require.NoError(t, err)
}

func testConcurrentCodeDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "u1", "u1@example.com")
	now := Now()

	code := newCode("race", now)
	require.NoError(t, s.AuthorizationCodes().CreateAuthorizationCode(ctx, code))
	require.NoError(t, s.AuthorizationCodes().ConfirmAuthorizationCode(ctx, code.ID, "u1", "h", now))

	const workers = 8
	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		notFound atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.AuthorizationCodes().DeleteAuthorizationCode(ctx, code.ID, "h")
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, store.ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), winners.Load())
	require.Equal(t, int32(workers-1), notFound.Load())
}

// testConcurrentSeatCounts increments seats_used under the subscription
// lock from many goroutines; none of the increments may be lost.
func testConcurrentSeatCounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedAccount(t, s, "owner", "owner@example.com")
	sub := SeedOrg(t, s, "org1", "owner", 5)

	const workers = 10
	var (
		wg   sync.WaitGroup
		full atomic.Int32
		errs = make(chan error, workers)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Tx) error {
				locked, err := tx.Subscriptions().LockSubscriptionByOrg(ctx, "org1")
				if err != nil {
					return err
				}
				if locked.Available() <= 0 {
					full.Add(1)
					return nil
				}
				return tx.Subscriptions().UpdateSeatCounts(ctx, sub.ID, locked.SeatsTotal, locked.SeatsUsed+1, Now())
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Subscriptions().GetSubscriptionByOrg(ctx, "org1")
	require.NoError(t, err)
	require.Equal(t, 5, got.SeatsUsed)
	require.Equal(t, int32(workers-5), full.Load())
}
