package plans_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/plans"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()
	c := plans.Default()

	monthly, err := c.SeatCredits("teams", "monthly")
	require.NoError(t, err)
	require.Equal(t, int64(500), monthly)

	yearly, err := c.SeatCredits("teams", "yearly")
	require.NoError(t, err)
	require.Equal(t, int64(6000), yearly)
	require.Equal(t, 12*monthly, yearly)

	plan, credits := c.Baseline("starter")
	require.Equal(t, "starter", plan)
	require.Equal(t, int64(50), credits)

	plan, credits = c.Baseline("pro")
	require.Equal(t, "pro", plan)
	require.Equal(t, int64(500), credits)

	// teams is not a personal plan, so it falls back to starter
	plan, credits = c.Baseline("teams")
	require.Equal(t, "starter", plan)
	require.Equal(t, int64(50), credits)

	require.True(t, c.IsSeatPlan("teams"))
	require.False(t, c.IsSeatPlan("starter"))
}

func TestSeatCreditsErrors(t *testing.T) {
	t.Parallel()
	c := plans.Default()

	_, err := c.SeatCredits("enterprise", "monthly")
	require.ErrorIs(t, err, plans.ErrUnknownPlan)

	_, err = c.SeatCredits("starter", "monthly")
	require.ErrorIs(t, err, plans.ErrNotSeatPlan)

	_, err = c.SeatCredits("teams", "weekly")
	require.ErrorIs(t, err, plans.ErrUnknownFrequency)
}

func TestLoadValidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"missing starter", "plans:\n  pro:\n    personal: true\n"},
		{"zero multiplier", "frequencies:\n  monthly: 0\nplans:\n  starter:\n    personal: true\n"},
		{"negative credits", "plans:\n  starter:\n    personal: true\n    baselineCredits: -1\n"},
		{"orphan plan", "plans:\n  starter:\n    personal: true\n  odd: {}\n"},
		{"not yaml", "plans: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plans.Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}

	c, err := plans.Load(strings.NewReader(`
frequencies:
  monthly: 1
  yearly: 10
plans:
  starter:
    personal: true
    baselineCredits: 25
  business:
    seatBaseCredits: 1000
`))
	require.NoError(t, err)
	yearly, err := c.SeatCredits("business", "yearly")
	require.NoError(t, err)
	require.Equal(t, int64(10000), yearly)
}
