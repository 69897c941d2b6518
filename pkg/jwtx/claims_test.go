package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "seatbridge",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("seatbridge"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("someone-else"), jwtx.ErrIssuer)
	})
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: []string{"seatbridge-extension", "billing"},
		},
	}

	require.NoError(t, c.ValidateAudience([]string{"seatbridge-extension"}))
	require.NoError(t, c.ValidateAudience([]string{"foo", "billing"}))
	require.NoError(t, c.ValidateAudience(nil))
	require.ErrorIs(t, c.ValidateAudience([]string{"admin"}), jwtx.ErrAudience)
}

func TestValidateExpiryWithLeeway(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-10 * time.Second)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}

	// Expired ten seconds ago: inside 30s of skew, outside 5s
	require.NoError(t, c.ValidateExpiryWithLeeway(now, 30*time.Second))
	require.ErrorIs(t, c.ValidateExpiryWithLeeway(now, 5*time.Second), jwtx.ErrExpired)

	t.Run("not yet valid", func(t *testing.T) {
		future := &jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
				NotBefore: jwt.NewNumericDate(now.Add(2 * time.Minute)),
			},
		}
		require.ErrorIs(t, future.ValidateExpiryWithLeeway(now, time.Minute), jwtx.ErrNotYetValid)
	})

	t.Run("missing exp", func(t *testing.T) {
		require.ErrorIs(t, (&jwtx.Claims{}).ValidateExpiryWithLeeway(now, 0), jwtx.ErrInvalidClaim)
	})
}

func TestNewAccessClaims_Pool(t *testing.T) {
	now := time.Now().UTC()
	subject := jwtx.Subject{ID: "u1", Email: "u1@example.com", PlanType: "pro", Credits: 120}

	t.Run("personal", func(t *testing.T) {
		c := jwtx.NewAccessClaims(subject, "sess1", nil, "iss", []string{"aud"}, now)

		require.Equal(t, jwtx.TypeAccess, c.Type)
		require.Equal(t, jwtx.PoolPersonal, c.Pool)
		require.Empty(t, c.OrgID)
		require.Empty(t, c.SeatID)
		require.Nil(t, c.Org())
		require.Equal(t, now.Add(jwtx.AccessTokenTTL).Unix(), c.ExpiresAt.Unix())
		require.NoError(t, c.ValidateShape())
	})

	t.Run("organization", func(t *testing.T) {
		org := &jwtx.OrgAttribution{OrgID: "org1", OrgSubscriptionID: "sub1", SeatID: "seat1", SeatRole: "member"}
		c := jwtx.NewAccessClaims(subject, "sess1", org, "iss", []string{"aud"}, now)

		require.Equal(t, jwtx.PoolOrganization, c.Pool)
		require.Equal(t, org, c.Org())
		require.NoError(t, c.ValidateShape())
	})
}

func TestValidateShape(t *testing.T) {
	now := time.Now().UTC()
	base := jwtx.NewAccessClaims(jwtx.Subject{ID: "u1"}, "s1", nil, "iss", nil, now)

	tests := []struct {
		name   string
		mutate func(c *jwtx.Claims)
	}{
		{"missing sub", func(c *jwtx.Claims) { c.Subject = "" }},
		{"missing sid", func(c *jwtx.Claims) { c.SID = "" }},
		{"unknown type", func(c *jwtx.Claims) { c.Type = "id" }},
		{"unknown pool", func(c *jwtx.Claims) { c.Pool = "team" }},
		{"personal with org id", func(c *jwtx.Claims) { c.OrgID = "org1" }},
		{"organization missing seat", func(c *jwtx.Claims) {
			c.Pool = jwtx.PoolOrganization
			c.OrgID, c.OrgSubscriptionID, c.SeatRole = "org1", "sub1", "member"
		}},
		{"refresh with pool", func(c *jwtx.Claims) { c.Type = jwtx.TypeRefresh }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			require.ErrorIs(t, c.ValidateShape(), jwtx.ErrInvalidClaim)
		})
	}

	t.Run("refresh", func(t *testing.T) {
		c := jwtx.NewRefreshClaims("u1", "s1", "iss", nil, now)
		require.NoError(t, c.ValidateShape())
		require.Equal(t, now.Add(jwtx.RefreshTokenTTL).Unix(), c.ExpiresAt.Unix())
	})
}
