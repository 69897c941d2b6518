package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/memory"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestAccountService(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		h := newHarness(t, st)

		a, created, err := h.accounts.Register(ctx, identity.Identity{SubjectID: "u1", Email: "U1@Example.com", DisplayName: "User One"})
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "u1@example.com", a.Email)
		require.Equal(t, domain.PlanStarter, a.PersonalPlan)
		require.Equal(t, int64(50), a.Credits)

		again, created, err := h.accounts.Register(ctx, identity.Identity{SubjectID: "u1", Email: "u1@example.com"})
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, "User One", again.DisplayName)

		_, _, err = h.accounts.Register(ctx, identity.Identity{SubjectID: "u2", Email: "u1@example.com"})
		require.ErrorIs(t, err, ErrAccountExists)

		_, _, err = h.accounts.Register(ctx, identity.Identity{SubjectID: "u3"})
		require.ErrorIs(t, err, ErrInvalidRequest)

		view, err := h.accounts.Get(ctx, "u1")
		require.NoError(t, err)
		require.Nil(t, view.Org)

		storetest.SeedAccount(t, st, "owner", "owner@example.com")
		storetest.SeedOrg(t, st, "org1", "owner", 1)
		_, err = h.seats.AssignSeat(ctx, "org1", "owner", "u1@example.com", domain.RoleMember)
		require.NoError(t, err)

		view, err = h.accounts.Get(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, view.Org)
		require.Equal(t, "org1", view.Org.OrgID)
		require.Equal(t, int64(500), view.Account.Credits)

		history, err := h.accounts.CreditHistory(ctx, "u1", 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, domain.CreditReasonSignup, history[len(history)-1].Reason)

		_, err = h.accounts.Get(ctx, "nobody")
		require.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestHousekeeping_RemovesExpiredCodes(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		h := newHarness(t, st)
		_, challenge := newPKCE(t)

		_, err := h.bridge.Initiate(ctx, InitiateRequest{State: "old", CodeChallenge: challenge})
		require.NoError(t, err)
		h.clock.Advance(time.Minute)
		_, err = h.bridge.Initiate(ctx, InitiateRequest{State: "new", CodeChallenge: challenge})
		require.NoError(t, err)

		h.clock.Advance(9*time.Minute + 30*time.Second)
		hk := NewHousekeepingService(st, h.seats, slog.New(slog.DiscardHandler), time.Hour)
		hk.Now = h.clock.Now
		hk.RunOnce(ctx)

		_, err = st.AuthorizationCodes().GetAuthorizationCodeByState(ctx, "old")
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = st.AuthorizationCodes().GetAuthorizationCodeByState(ctx, "new")
		require.NoError(t, err)
	})
}

func TestHousekeeping_StartStop(t *testing.T) {
	t.Parallel()

	hk := NewHousekeepingService(memory.NewStore(), nil, slog.New(slog.DiscardHandler), time.Millisecond)
	hk.Start()
	time.Sleep(5 * time.Millisecond)
	hk.Stop()
	hk.Stop()
}
