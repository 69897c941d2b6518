package service

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/environment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/plans"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/memory"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlite"
	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "seatbridge-test"
	testAudience = "seatbridge-extension"
)

// testClock is a settable time source shared by services and the codec.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    store.Store
	clock    *testClock
	codec    *jwtx.Codec
	payments *payment.DevProcessor
	bridge   *BridgeService
	seats    *EntitlementService
	accounts *AccountService
}

func newHarness(t *testing.T, st store.Store) *harness {
	t.Helper()

	clock := newTestClock()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:   testIssuer,
		Audience: []string{testAudience},
		Leeway:   30 * time.Second,
		NumKeys:  1,
	})
	require.NoError(t, err)
	codec := jwtx.NewCodec(km, testIssuer, []string{testAudience}).WithClock(clock.Now)

	payments := payment.NewDevProcessor("http://localhost:8080")
	catalog := plans.Default()

	h := &harness{
		store:    st,
		clock:    clock,
		codec:    codec,
		payments: payments,
		bridge: &BridgeService{
			Store:    st,
			Sessions: &SessionStore{Store: st, Now: clock.Now},
			Codec:    codec,
			Env:      environment.NewDevelopment(payments),
			Now:      clock.Now,
		},
		seats: &EntitlementService{
			Store:    st,
			Catalog:  catalog,
			Payments: payments,
			Prices:   SeatPrices{"monthly": "price_seat_monthly", "yearly": "price_seat_yearly"},
			BaseURL:  "http://localhost:8080",
			Now:      clock.Now,
		},
		accounts: &AccountService{Store: st, Catalog: catalog, Now: clock.Now},
	}
	h.accounts.Seats = h.seats
	payments.OnCompleted(h.seats.ApplySeatPurchase)
	return h
}

// forEachStore runs fn against the in-memory driver and sqlite in memory.
func forEachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, memory.NewStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		st, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		require.NoError(t, st.ApplyMigrations())
		fn(t, st)
	})
}

func newPKCE(t *testing.T) (verifier, challenge string) {
	t.Helper()
	verifier, err := cryptox.GeneratePKCEVerifier()
	require.NoError(t, err)
	return verifier, cryptox.PKCEChallenge(verifier)
}
