//go:build e2e

package bridge_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	client := bridgesdk.NewClient(baseURL)

	t.Run("livez", func(t *testing.T) {
		health, err := client.GetLiveness(t.Context())
		assertHealthy(t, health, err)
		require.NotEmpty(t, health.Version)
	})

	t.Run("readyz", func(t *testing.T) {
		health, err := client.GetReadiness(t.Context())
		assertHealthy(t, health, err)
		require.NotNil(t, health.Checks)
		require.Equal(t, "ok", health.Checks.Database)
		require.Equal(t, "ok", health.Checks.Signer)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
