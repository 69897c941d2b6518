//go:build e2e

package bridge_test

import (
	"testing"

	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/stretchr/testify/require"
)

// TestRegisterRateLimit checks the strict tier (5 per minute per subject)
// guards account registration with production limits.
func TestRegisterRateLimit(t *testing.T) {
	baseURL, cleanup := setupBridgeContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := bridgesdk.NewClient(baseURL)

	for i := range 5 {
		_, err := client.Register(t.Context(), devAssertion("greedy"))
		require.NoError(t, err, "request %d should be allowed", i+1)
	}

	_, err := client.Register(t.Context(), devAssertion("greedy"))
	var apiErr *bridgesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 429, apiErr.StatusCode)
	require.Equal(t, bridgesdk.ErrorCodeRateLimitExceeded, apiErr.Code)

	// Limits are per subject
	_, err = client.Register(t.Context(), devAssertion("patient"))
	require.NoError(t, err)
}
