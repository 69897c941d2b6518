//go:build e2e

package bridge_test

import (
	"testing"

	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// TestExtensionLoginRefresh tests the complete flow:
// 1. Register through the browser path
// 2. Hand a login off to the extension with PKCE
// 3. Refresh the token pair
// 4. Verify the rotated pair differs and the old refresh token is dead
func TestExtensionLoginRefresh(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	client := bridgesdk.NewClient(baseURL)
	ctx := t.Context()

	acct := registerAccount(t, client, "alice")
	require.Equal(t, jwtx.PoolPersonal, acct.Pool)

	tokens := performLogin(t, client, "alice")

	info, err := client.GetSession(ctx, tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", info.SubjectID)
	require.Equal(t, tokens.SessionID, info.SessionID)
	require.Equal(t, acct.Credits, info.Credits)

	rotated, err := client.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, rotated)
	require.NotEqual(t, tokens.AccessToken, rotated.AccessToken, "Access token should rotate")
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken, "Refresh token should rotate")
	require.NotEqual(t, tokens.SessionID, rotated.SessionID)

	_, err = client.Refresh(ctx, tokens.RefreshToken)
	assertAPIError(t, err, bridgesdk.ErrInvalidToken)

	// Reuse of a rotated refresh token ends the successor too
	_, err = client.GetSession(ctx, rotated.AccessToken)
	assertAPIError(t, err, bridgesdk.ErrInvalidToken)
}

func TestSessionHelperAndLogout(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	client := bridgesdk.NewClient(baseURL)
	ctx := t.Context()

	registerAccount(t, client, "bob")
	session := client.NewSession(performLogin(t, client, "bob"))

	info, err := session.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob", info.SubjectID)

	acct, err := session.Account(ctx)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", acct.Email)

	access, err := session.AccessToken(ctx)
	require.NoError(t, err)

	require.NoError(t, session.Revoke(ctx))

	_, err = client.GetSession(ctx, access)
	assertAPIError(t, err, bridgesdk.ErrInvalidToken)
}

func TestHandoffRejections(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	client := bridgesdk.NewClient(baseURL)
	ctx := t.Context()
	registerAccount(t, client, "carol")

	t.Run("exchange before confirm", func(t *testing.T) {
		verifier, challenge, err := bridgesdk.GeneratePKCE()
		require.NoError(t, err)
		started, err := client.Initiate(ctx, bridgesdk.InitiateRequest{RedirectURI: extensionURI, PKCEChallenge: challenge})
		require.NoError(t, err)

		_, err = client.Exchange(ctx, bridgesdk.ExchangeRequest{Code: started.Code, State: started.State, PKCEVerifier: verifier})
		assertAPIError(t, err, bridgesdk.ErrAuthNotComplete)
	})

	t.Run("wrong verifier burns the code", func(t *testing.T) {
		verifier, challenge, err := bridgesdk.GeneratePKCE()
		require.NoError(t, err)
		other, _, err := bridgesdk.GeneratePKCE()
		require.NoError(t, err)

		started, err := client.Initiate(ctx, bridgesdk.InitiateRequest{RedirectURI: extensionURI, PKCEChallenge: challenge})
		require.NoError(t, err)
		_, err = client.Confirm(ctx, devAssertion("carol"), bridgesdk.ConfirmRequest{State: started.State, SubjectID: "carol"})
		require.NoError(t, err)

		_, err = client.Exchange(ctx, bridgesdk.ExchangeRequest{Code: started.Code, State: started.State, PKCEVerifier: other})
		assertAPIError(t, err, bridgesdk.ErrInvalidPkceVerifier)

		_, err = client.Exchange(ctx, bridgesdk.ExchangeRequest{Code: started.Code, State: started.State, PKCEVerifier: verifier})
		assertAPIError(t, err, bridgesdk.ErrInvalidOrExpiredCode)
	})

	t.Run("confirm for someone else", func(t *testing.T) {
		_, challenge, err := bridgesdk.GeneratePKCE()
		require.NoError(t, err)
		started, err := client.Initiate(ctx, bridgesdk.InitiateRequest{RedirectURI: extensionURI, PKCEChallenge: challenge})
		require.NoError(t, err)

		_, err = client.Confirm(ctx, devAssertion("carol"), bridgesdk.ConfirmRequest{State: started.State, SubjectID: "mallory"})
		assertAPIError(t, err, bridgesdk.ErrForbidden)
	})

	t.Run("web redirect scheme", func(t *testing.T) {
		_, challenge, err := bridgesdk.GeneratePKCE()
		require.NoError(t, err)
		_, err = client.Initiate(ctx, bridgesdk.InitiateRequest{RedirectURI: "javascript:alert(1)", PKCEChallenge: challenge})
		assertAPIError(t, err, bridgesdk.ErrInvalidRedirectURI)
	})
}
