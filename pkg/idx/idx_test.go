package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(" " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	for _, bad := range []string{"", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(bad)
		require.ErrorIs(t, err, idx.ErrInvalid, bad)
	}
}

func TestNewAt_OrdersWithClock(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()

	earlier := idx.NewAt(base)
	later := idx.NewAt(base.Add(time.Second))
	require.Less(t, earlier.String(), later.String())
	require.WithinDuration(t, base, earlier.Time(), time.Millisecond)
	require.True(t, idx.Zero.Time().IsZero())
}

// Same-millisecond IDs stay unique across goroutines.
func TestNewAt_UniqueWithinMillisecond(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = idx.NewAt(now).String()
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
