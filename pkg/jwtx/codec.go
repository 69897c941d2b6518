package jwtx

import (
	"fmt"
	"time"
)

// Codec mints and verifies the bridge's access and refresh tokens. Every
// token it signs carries the same issuer and audience.
type Codec struct {
	keys     *KeyManager
	issuer   string
	audience []string
	now      func() time.Time
}

// NewCodec builds a Codec over km. The issuer and audience must match the
// options the KeyManager's verifier was built with.
func NewCodec(km *KeyManager, issuer string, audience []string) *Codec {
	return &Codec{
		keys:     km,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// WithClock overrides the time source for both minting and verification.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	c.keys.Verifier.WithClock(now)
	return c
}

// MintAccessToken signs a 24h access token for subject bound to sid.
func (c *Codec) MintAccessToken(subject Subject, sid string, org *OrgAttribution) (string, Claims, error) {
	claims := NewAccessClaims(subject, sid, org, c.issuer, c.audience, c.now().UTC())
	if err := claims.ValidateShape(); err != nil {
		return "", Claims{}, fmt.Errorf("jwtx: refusing to mint access token: %w", err)
	}
	token, err := c.sign(claims)
	return token, claims, err
}

// MintRefreshToken signs a 30 day refresh token for subject bound to sid.
func (c *Codec) MintRefreshToken(subject, sid string) (string, Claims, error) {
	claims := NewRefreshClaims(subject, sid, c.issuer, c.audience, c.now().UTC())
	if err := claims.ValidateShape(); err != nil {
		return "", Claims{}, fmt.Errorf("jwtx: refusing to mint refresh token: %w", err)
	}
	token, err := c.sign(claims)
	return token, claims, err
}

// VerifyToken checks signature, algorithm, issuer, audience and expiry.
// Failures wrap ErrInvalidToken.
func (c *Codec) VerifyToken(token string) (Claims, error) {
	return c.keys.Verifier.Verify(token)
}

// VerifyAccessToken is VerifyToken plus a type check.
func (c *Codec) VerifyAccessToken(token string) (Claims, error) {
	return c.verifyType(token, TypeAccess)
}

// VerifyRefreshToken is VerifyToken plus a type check.
func (c *Codec) VerifyRefreshToken(token string) (Claims, error) {
	return c.verifyType(token, TypeRefresh)
}

// PublicJWKS returns the verification keys for publishing.
func (c *Codec) PublicJWKS() JWKS {
	return c.keys.KeySet.JWKS()
}

// Ready reports whether signing keys are loaded.
func (c *Codec) Ready() bool {
	return c.keys.IsReady()
}

func (c *Codec) verifyType(token, typ string) (Claims, error) {
	claims, err := c.VerifyToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != typ {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrWrongType)
	}
	return claims, nil
}

func (c *Codec) sign(claims Claims) (string, error) {
	return c.keys.Signer().Sign(claims)
}
