package identity_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://id.example.com"
	testAudience = "web-app"
)

type idpClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func newIdP(t *testing.T) (*httptest.Server, ed25519.PrivateKey, *atomic.Int32) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=300")
		_ = json.NewEncoder(w).Encode(jwtx.JWKS{Keys: []jwtx.JWK{
			jwtx.Ed25519JWK("idp-1", pub),
		}})
	}))
	t.Cleanup(srv.Close)
	return srv, priv, &hits
}

func sign(t *testing.T, priv ed25519.PrivateKey, kid string, c idpClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(priv)
	require.NoError(t, err)
	return s
}

func validClaims(now time.Time) idpClaims {
	return idpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "Alice@Example.com",
		Name:  "Alice",
	}
}

func TestJWKSProvider_VerifyAssertion(t *testing.T) {
	t.Parallel()

	srv, priv, hits := newIdP(t)
	p, err := identity.NewJWKSProvider(identity.JWKSConfig{
		JWKSURL:  srv.URL,
		Issuer:   testIssuer,
		Audience: testAudience,
		Leeway:   30 * time.Second,
	})
	require.NoError(t, err)

	now := time.Now()
	ctx := context.Background()

	id, err := p.VerifyAssertion(ctx, sign(t, priv, "idp-1", validClaims(now)))
	require.NoError(t, err)
	require.Equal(t, identity.Identity{SubjectID: "u1", Email: "alice@example.com", DisplayName: "Alice"}, id)

	// Second verification is served from the loaded key set
	_, err = p.VerifyAssertion(ctx, sign(t, priv, "idp-1", validClaims(now)))
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	t.Run("wrong issuer", func(t *testing.T) {
		c := validClaims(now)
		c.Issuer = "https://evil.example.com"
		_, err := p.VerifyAssertion(ctx, sign(t, priv, "idp-1", c))
		require.ErrorIs(t, err, identity.ErrInvalidAssertion)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := validClaims(now)
		c.Audience = jwt.ClaimStrings{"other"}
		_, err := p.VerifyAssertion(ctx, sign(t, priv, "idp-1", c))
		require.ErrorIs(t, err, identity.ErrInvalidAssertion)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims(now.Add(-2 * time.Hour))
		_, err := p.VerifyAssertion(ctx, sign(t, priv, "idp-1", c))
		require.ErrorIs(t, err, identity.ErrInvalidAssertion)
	})

	t.Run("missing email", func(t *testing.T) {
		c := validClaims(now)
		c.Email = ""
		_, err := p.VerifyAssertion(ctx, sign(t, priv, "idp-1", c))
		require.ErrorIs(t, err, identity.ErrInvalidAssertion)
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := p.VerifyAssertion(ctx, sign(t, priv, "rotated", validClaims(now)))
		require.ErrorIs(t, err, identity.ErrInvalidAssertion)
	})

	t.Run("hmac rejected", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(now))
		tok.Header["kid"] = "idp-1"
		s, err := tok.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = p.VerifyAssertion(ctx, s)
		require.ErrorIs(t, err, identity.ErrInvalidAssertion)
	})
}

func TestJWKSProvider_Unavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	p, err := identity.NewJWKSProvider(identity.JWKSConfig{JWKSURL: srv.URL, Issuer: testIssuer})
	require.NoError(t, err)

	_, err = p.VerifyAssertion(context.Background(), sign(t, priv, "idp-1", validClaims(time.Now())))
	require.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestNewJWKSProvider_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := identity.NewJWKSProvider(identity.JWKSConfig{Issuer: testIssuer})
	require.Error(t, err)

	_, err = identity.NewJWKSProvider(identity.JWKSConfig{JWKSURL: "http://localhost"})
	require.Error(t, err)
}

func TestDevProvider(t *testing.T) {
	t.Parallel()
	p := identity.NewDevProvider()
	ctx := context.Background()

	id, err := p.VerifyAssertion(ctx, "dev:u1")
	require.NoError(t, err)
	require.Equal(t, "u1", id.SubjectID)
	require.Equal(t, "u1@dev.local", id.Email)

	id, err = p.VerifyAssertion(ctx, "dev:u2:Bob@Example.com")
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", id.Email)

	for _, bad := range []string{"", "dev:", "dev::x@y", "u1", "Bearer dev:u1"} {
		_, err := p.VerifyAssertion(ctx, bad)
		require.ErrorIs(t, err, identity.ErrInvalidAssertion, bad)
	}
}
