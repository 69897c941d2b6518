//go:build e2e

package bridge_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// TestJWKSVerifiesIssuedTokens checks a third party can verify bridge access
// tokens with nothing but the published key set.
func TestJWKSVerifiesIssuedTokens(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	client := bridgesdk.NewClient(baseURL)
	registerAccount(t, client, "frank")
	tokens := performLogin(t, client, "frank")

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys)

	keys := make(map[string]ed25519.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		require.Equal(t, "OKP", k.Kty)
		require.Equal(t, "Ed25519", k.Crv)
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		require.NoError(t, err)
		keys[k.Kid] = ed25519.PublicKey(x)
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokens.AccessToken, claims, func(tok *jwt.Token) (any, error) {
		kid, _ := tok.Header["kid"].(string)
		return keys[kid], nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithIssuer("seatbridge-e2e"))
	require.NoError(t, err)
	require.True(t, token.Valid)
	require.Equal(t, "frank", claims["sub"])
}
