package cryptox_test

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateEd25519Key_SignsAndVerifies(t *testing.T) {
	first, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	second, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	block, rest := pem.Decode(first)
	require.NotNil(t, block)
	require.Empty(t, rest)
	require.Equal(t, "PRIVATE KEY", block.Type)

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	priv, ok := parsed.(ed25519.PrivateKey)
	require.True(t, ok, "got %T", parsed)

	msg := []byte("seatbridge")
	sig := ed25519.Sign(priv, msg)
	require.True(t, ed25519.Verify(priv.Public().(ed25519.PublicKey), msg, sig))
}
