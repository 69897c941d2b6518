//go:build e2e

package bridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for bridge end-to-end tests.
 * This includes container setup, login flows, and webhook delivery.
 */

const (
	testImageName = "seatbridge-test:latest"

	webhookSecret = "whsec_e2e_secret"
	extensionURI  = "vscode://seatbridge.extension/auth"
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building seatbridge Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up seatbridge Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/bridge/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// baseEnv is the development configuration every container starts with.
func baseEnv() map[string]string {
	return map[string]string{
		"BRIDGE_ENVIRONMENT":            "development",
		"BRIDGE_STORE":                  "sqlite",
		"BRIDGE_DATABASE_FILE":          "/data/seatbridge.db",
		"BRIDGE_ISSUER":                 "seatbridge-e2e",
		"BRIDGE_PAYMENT_WEBHOOK_SECRET": webhookSecret,
		"ENV":                           "test",
		"LOG_LEVEL":                     "info",
		"LOG_FORMAT":                    "json",
	}
}

// setupBridgeContainer starts the bridge with relaxed rate limits and returns
// its base URL.
func setupBridgeContainer(t *testing.T) (string, func()) {
	t.Helper()

	env := baseEnv()
	// Tests make many rapid requests which would otherwise hit the production limits
	for _, tier := range []string{"STRICT", "MODERATE", "LENIENT"} {
		env["RATELIMIT_"+tier+"_REQUESTS"] = "1000"
		env["RATELIMIT_"+tier+"_WINDOW_SEC"] = "60"
		env["RATELIMIT_"+tier+"_BURST"] = "1000"
	}
	return startContainer(t, env)
}

// setupBridgeContainerWithDefaultRateLimits keeps the production limits, for
// tests that check rate limiting itself.
func setupBridgeContainerWithDefaultRateLimits(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// devAssertion is what the development identity provider accepts as a
// browser bearer token.
func devAssertion(subject string) string {
	return "dev:" + subject + ":" + subject + "@example.com"
}

// registerAccount signs subject up through the browser path.
func registerAccount(t *testing.T, client *bridgesdk.Client, subject string) *bridgesdk.AccountResponse {
	t.Helper()

	acct, err := client.Register(t.Context(), devAssertion(subject))
	require.NoError(t, err, "Register should succeed")
	require.Equal(t, subject, acct.SubjectID)
	return acct
}

// performLogin runs the whole extension handoff for subject and returns the
// issued token pair.
func performLogin(t *testing.T, client *bridgesdk.Client, subject string) *bridgesdk.TokenResponse {
	t.Helper()
	ctx := t.Context()

	verifier, challenge, err := bridgesdk.GeneratePKCE()
	require.NoError(t, err)

	started, err := client.Initiate(ctx, bridgesdk.InitiateRequest{
		RedirectURI:   extensionURI,
		PKCEChallenge: challenge,
	})
	require.NoError(t, err, "Initiate should succeed")

	confirmed, err := client.Confirm(ctx, devAssertion(subject), bridgesdk.ConfirmRequest{
		State:     started.State,
		SubjectID: subject,
	})
	require.NoError(t, err, "Confirm should succeed")
	require.Equal(t, extensionURI, confirmed.RedirectURI)

	tokens, err := client.PollExchange(ctx, bridgesdk.ExchangeRequest{
		Code:         started.Code,
		State:        started.State,
		PKCEVerifier: verifier,
		ClientInfo:   "e2e",
	}, 200*time.Millisecond)
	require.NoError(t, err, "Exchange should succeed")
	assertTokenResponse(t, tokens)
	return tokens
}

// sendWebhook signs and posts a payment event.
func sendWebhook(t *testing.T, baseURL, id, typ string, data any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(payment.Event{
		ID:         id,
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+"/billing/webhook", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.SignatureHeader, payment.Sign([]byte(webhookSecret), body, time.Now()))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// provisionOrg creates a teams subscription owned by an already registered
// owner.
func provisionOrg(t *testing.T, baseURL, owner, orgID string, seats int) {
	t.Helper()

	resp := sendWebhook(t, baseURL, "evt_create_"+orgID, payment.EventSubscriptionCreated, payment.SubscriptionChanged{
		SubscriptionRef:  "sub_" + orgID,
		CustomerRef:      "cus_" + orgID,
		Status:           "active",
		PlanType:         "teams",
		BillingFrequency: "monthly",
		Quantity:         seats,
		Metadata: map[string]string{
			payment.MetaOwnerID: owner,
			payment.MetaOrgID:   orgID,
			payment.MetaOrgName: "E2E " + orgID,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "subscription.created should be accepted")
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *bridgesdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.NotEmpty(t, resp.SessionID, "Session id should not be empty")
	require.Positive(t, resp.ExpiresIn)
}

// assertAPIError checks err carries the given bridge error.
func assertAPIError(t *testing.T, err error, want *bridgesdk.APIError) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, want, "got %v", err)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *bridgesdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
