package jwtx_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	exampleIssuer   = "seatbridge-test"
	exampleAudience = "seatbridge-extension"
)

func newTestCodec(t *testing.T) (*jwtx.Codec, *jwtx.KeyManager) {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:   exampleIssuer,
		Audience: []string{exampleAudience},
		Leeway:   30 * time.Second,
		NumKeys:  1,
	})
	require.NoError(t, err)
	return jwtx.NewCodec(km, exampleIssuer, []string{exampleAudience}), km
}

func TestCodec_AccessRoundTrip(t *testing.T) {
	t.Parallel()
	codec, _ := newTestCodec(t)

	org := &jwtx.OrgAttribution{OrgID: "org1", OrgSubscriptionID: "osub1", SeatID: "seat1", SeatRole: "member"}
	token, minted, err := codec.MintAccessToken(jwtx.Subject{ID: "u1", PlanType: "teams", Credits: 500}, "sess1", org)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := codec.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "sess1", claims.SID)
	require.Equal(t, jwtx.TypeAccess, claims.Type)
	require.Equal(t, jwtx.PoolOrganization, claims.Pool)
	require.Equal(t, int64(500), claims.Credits)
	require.Equal(t, "seat1", claims.SeatID)
	require.Equal(t, exampleIssuer, claims.Issuer)
	require.ElementsMatch(t, []string{exampleAudience}, claims.Audience)
	require.Equal(t, minted.ID, claims.ID)

	// An access token is not a refresh token
	_, err = codec.VerifyRefreshToken(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrWrongType)
}

func TestCodec_RefreshRoundTrip(t *testing.T) {
	t.Parallel()
	codec, _ := newTestCodec(t)

	token, _, err := codec.MintRefreshToken("u1", "sess1")
	require.NoError(t, err)

	claims, err := codec.VerifyRefreshToken(token)
	require.NoError(t, err)
	require.Equal(t, jwtx.TypeRefresh, claims.Type)
	require.Empty(t, claims.Pool)

	_, err = codec.VerifyAccessToken(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestCodec_Expiry(t *testing.T) {
	t.Parallel()
	codec, _ := newTestCodec(t)

	issued := time.Now().UTC()
	clock := issued
	codec.WithClock(func() time.Time { return clock })

	token, _, err := codec.MintAccessToken(jwtx.Subject{ID: "u1"}, "sess1", nil)
	require.NoError(t, err)

	clock = issued.Add(jwtx.AccessTokenTTL - time.Second)
	_, err = codec.VerifyAccessToken(token)
	require.NoError(t, err)

	// Inside the skew window
	clock = issued.Add(jwtx.AccessTokenTTL + 20*time.Second)
	_, err = codec.VerifyAccessToken(token)
	require.NoError(t, err)

	clock = issued.Add(jwtx.AccessTokenTTL + 2*time.Minute)
	_, err = codec.VerifyAccessToken(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodec_LeewayIsCapped(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer: exampleIssuer,
		Leeway: 10 * time.Minute,
	})
	require.NoError(t, err)
	codec := jwtx.NewCodec(km, exampleIssuer, nil)

	issued := time.Now().UTC()
	clock := issued
	codec.WithClock(func() time.Time { return clock })

	token, _, err := codec.MintRefreshToken("u1", "sess1")
	require.NoError(t, err)

	clock = issued.Add(jwtx.RefreshTokenTTL + 90*time.Second)
	_, err = codec.VerifyToken(token)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestCodec_RejectsAlgorithmConfusion(t *testing.T) {
	t.Parallel()
	codec, km := newTestCodec(t)

	claims := jwtx.NewAccessClaims(jwtx.Subject{ID: "attacker"}, "sess1", nil, exampleIssuer, []string{exampleAudience}, time.Now().UTC())
	signer := km.Signer()

	t.Run("alg none", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
		tok.Header["kid"] = signer.KID()
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = codec.VerifyToken(s)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})

	t.Run("HS256 keyed with the public key", func(t *testing.T) {
		pub, err := base64.RawURLEncoding.DecodeString(signer.PublicJWK().X)
		require.NoError(t, err)

		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tok.Header["kid"] = signer.KID()
		s, err := tok.SignedString(pub)
		require.NoError(t, err)

		_, err = codec.VerifyToken(s)
		require.ErrorIs(t, err, jwtx.ErrInvalidToken)
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})
}

func TestCodec_RejectsForeignKeysAndTampering(t *testing.T) {
	t.Parallel()
	codec, _ := newTestCodec(t)
	other, _ := newTestCodec(t)

	token, _, err := other.MintAccessToken(jwtx.Subject{ID: "u1"}, "sess1", nil)
	require.NoError(t, err)

	_, err = codec.VerifyToken(token)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)

	own, _, err := codec.MintAccessToken(jwtx.Subject{ID: "u1", Credits: 10}, "sess1", nil)
	require.NoError(t, err)

	parts := strings.Split(own, ".")
	require.Len(t, parts, 3)
	forged := jwtx.NewAccessClaims(jwtx.Subject{ID: "u1", Credits: 1_000_000}, "sess1", nil, exampleIssuer, []string{exampleAudience}, time.Now().UTC())
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, forged).SigningString()
	require.NoError(t, err)
	payload := strings.Split(unsigned, ".")[1]

	_, err = codec.VerifyToken(parts[0] + "." + payload + "." + parts[2])
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)

	_, err = codec.VerifyToken("not-a-jwt")
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}

func TestCodec_RejectsWrongIssuerAndAudience(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSigner("k1", pemKey)
	require.NoError(t, err)

	km, err := jwtx.NewKeyManager([]*jwtx.Signer{signer}, jwtx.KeyManagerOptions{
		Issuer:   exampleIssuer,
		Audience: []string{exampleAudience},
	})
	require.NoError(t, err)
	codec := jwtx.NewCodec(km, exampleIssuer, []string{exampleAudience})

	now := time.Now().UTC()

	wrongIss := jwtx.NewAccessClaims(jwtx.Subject{ID: "u1"}, "s1", nil, "evil", []string{exampleAudience}, now)
	tok, err := signer.Sign(wrongIss)
	require.NoError(t, err)
	_, err = codec.VerifyToken(tok)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	wrongAud := jwtx.NewAccessClaims(jwtx.Subject{ID: "u1"}, "s1", nil, exampleIssuer, []string{"web"}, now)
	tok, err = signer.Sign(wrongAud)
	require.NoError(t, err)
	_, err = codec.VerifyToken(tok)
	require.ErrorIs(t, err, jwtx.ErrAudience)
}

func TestKeyManager_FromPEMAndJWKS(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	km, err := jwtx.NewKeyManagerFromPEM("kid-1", pemKey, jwtx.KeyManagerOptions{Issuer: exampleIssuer})
	require.NoError(t, err)
	require.True(t, km.IsReady())
	require.Equal(t, 1, km.SignerCount())

	jwks := km.KeySet.JWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)
	require.Equal(t, "kid-1", jwks.Keys[0].Kid)

	pemStr, err := jwks.Keys[0].PEM()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))

	_, err = jwtx.NewKeyManagerFromPEM("kid-1", []byte("not-a-pem-key"), jwtx.KeyManagerOptions{Issuer: exampleIssuer})
	require.Error(t, err)

	_, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{})
	require.Error(t, err, "issuer is required")
}

func TestKeySet_ReplaceSkipsUnsupported(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	ks := jwtx.NewKeySet()
	err = ks.Replace(jwtx.JWKS{Keys: []jwtx.JWK{
		jwtx.Ed25519JWK("good", pub),
		{Kty: "oct", Kid: "symmetric"},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, ks.Len())

	_, err = ks.Get("symmetric")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	err = ks.Replace(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "oct", Kid: "symmetric"}}})
	require.Error(t, err)
}
