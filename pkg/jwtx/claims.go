package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token lifetimes issued by the bridge.
const (
	// AccessTokenTTL is the lifetime of an extension access token.
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the lifetime of a refresh token and its session.
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Credit pools an access token can be attributed to.
const (
	PoolPersonal     = "personal"
	PoolOrganization = "organization"
)

// Claims is the one claim shape shared by every token the bridge mints and
// every consumer that verifies them. Access tokens fill the entitlement
// snapshot; refresh tokens only carry sub, sid and type.
type Claims struct {
	jwt.RegisteredClaims

	// Type is "access" or "refresh".
	Type string `json:"type"`

	// Session ID
	SID string `json:"sid"`

	Email    string `json:"email,omitempty"`
	PlanType string `json:"plan_type,omitempty"`

	// Credits is the balance snapshot at mint time. Consumers must not treat
	// it as authoritative after the token is issued.
	Credits int64 `json:"credits,omitempty"`

	// Pool says which balance the credits come from. The org fields are set
	// if and only if Pool is "organization".
	Pool              string `json:"pool,omitempty"`
	OrgID             string `json:"org_id,omitempty"`
	OrgSubscriptionID string `json:"org_subscription_id,omitempty"`
	SeatID            string `json:"seat_id,omitempty"`
	SeatRole          string `json:"seat_role,omitempty"`
}

// Subject is the account snapshot embedded in an access token.
type Subject struct {
	ID       string
	Email    string
	PlanType string
	Credits  int64
}

// OrgAttribution links an access token to an organization seat.
type OrgAttribution struct {
	OrgID             string
	OrgSubscriptionID string
	SeatID            string
	SeatRole          string
}

// NewAccessClaims builds access claims for subject bound to session sid.
// A nil org yields a personal-pool token.
func NewAccessClaims(
	subject Subject,
	sid string,
	org *OrgAttribution,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	c := Claims{
		RegisteredClaims: registered(subject.ID, issuer, audience, now, AccessTokenTTL),
		Type:             TypeAccess,
		SID:              sid,
		Email:            subject.Email,
		PlanType:         subject.PlanType,
		Credits:          subject.Credits,
		Pool:             PoolPersonal,
	}

	if org != nil {
		c.Pool = PoolOrganization
		c.OrgID = org.OrgID
		c.OrgSubscriptionID = org.OrgSubscriptionID
		c.SeatID = org.SeatID
		c.SeatRole = org.SeatRole
	}

	return c
}

// NewRefreshClaims builds refresh claims for subject bound to session sid.
func NewRefreshClaims(subject, sid, issuer string, audience []string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, audience, now, RefreshTokenTTL),
		Type:             TypeRefresh,
		SID:              sid,
	}
}

func registered(subject, issuer string, audience []string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings(audience),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Org returns the seat attribution or nil for personal-pool tokens.
func (c *Claims) Org() *OrgAttribution {
	if c.Pool != PoolOrganization {
		return nil
	}
	return &OrgAttribution{
		OrgID:             c.OrgID,
		OrgSubscriptionID: c.OrgSubscriptionID,
		SeatID:            c.SeatID,
		SeatRole:          c.SeatRole,
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiryWithLeeway checks exp and nbf against now with a grace
// period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}

	if now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// ValidateShape enforces the structural rules of each token type: sub and
// sid are always present, and org fields appear iff the pool is organization.
func (c *Claims) ValidateShape() error {
	if c.Subject == "" || c.SID == "" {
		return ErrInvalidClaim
	}

	orgFields := []string{c.OrgID, c.OrgSubscriptionID, c.SeatID, c.SeatRole}

	switch c.Type {
	case TypeRefresh:
		if c.Pool != "" || slices.ContainsFunc(orgFields, nonEmpty) {
			return ErrInvalidClaim
		}
	case TypeAccess:
		switch c.Pool {
		case PoolPersonal:
			if slices.ContainsFunc(orgFields, nonEmpty) {
				return ErrInvalidClaim
			}
		case PoolOrganization:
			if slices.Contains(orgFields, "") {
				return ErrInvalidClaim
			}
		default:
			return ErrInvalidClaim
		}
	default:
		return ErrInvalidClaim
	}

	return nil
}

func nonEmpty(s string) bool { return s != "" }
