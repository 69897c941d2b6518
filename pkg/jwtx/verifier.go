package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MaxLeeway caps the clock skew tolerated on exp and nbf.
const MaxLeeway = 60 * time.Second

// ErrInvalidToken is the single error every verification failure wraps.
// Callers outside this package should only ever match on it; the detail
// errors below exist for server-side logs.
var ErrInvalidToken = errors.New("invalid_token")

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
	ErrWrongType    = errors.New("jwtx: wrong token type")
)

// ClampLeeway bounds a configured skew to [0, MaxLeeway].
func ClampLeeway(leeway time.Duration) time.Duration {
	return min(max(leeway, 0), MaxLeeway)
}

// Verifier checks EdDSA tokens against a KeySet. Only the header's kid picks
// the key and only EdDSA is accepted, whatever the header's alg claims.
type Verifier struct {
	keys     *KeySet
	issuer   string
	audience []string
	leeway   time.Duration

	mu  sync.RWMutex
	now func() time.Time
}

func NewVerifier(keys *KeySet, issuer string, audience []string, leeway time.Duration) *Verifier {
	return &Verifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		leeway:   ClampLeeway(leeway),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for exp and nbf.
func (v *Verifier) WithClock(now func() time.Time) {
	v.mu.Lock()
	v.now = now
	v.mu.Unlock()
}

// Verify parses token and returns its claims. Every failure wraps
// ErrInvalidToken together with one of the detail errors.
func (v *Verifier) Verify(token string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(token, &claims, v.key); err != nil {
		return Claims{}, invalid(classify(err))
	}

	v.mu.RLock()
	now := v.now()
	v.mu.RUnlock()

	checks := []error{
		claims.ValidateIssuer(v.issuer),
		claims.ValidateAudience(v.audience),
		claims.ValidateExpiryWithLeeway(now, v.leeway),
		claims.ValidateShape(),
	}
	for _, err := range checks {
		if err != nil {
			return Claims{}, invalid(err)
		}
	}
	return claims, nil
}

func (v *Verifier) key(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodEdDSA {
		return nil, ErrAlgMismatch
	}
	kid, _ := t.Header["kid"].(string)
	pub, err := v.keys.Get(kid)
	if err != nil {
		return nil, ErrUnknownKID
	}
	ed, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, ErrAlgMismatch
	}
	return ed, nil
}

// classify maps golang-jwt's parse errors onto ours. Errors raised by key
// are already ours and pass through.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrAlgMismatch), errors.Is(err, ErrUnknownKID):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	default:
		return ErrMalformed
	}
}

func invalid(detail error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, detail)
}
