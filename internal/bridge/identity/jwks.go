package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gregjones/httpcache"
)

// Algorithms accepted from the identity provider. HMAC and "none" are never
// accepted since the provider's keys are public.
var providerAlgorithms = []string{
	jwt.SigningMethodEdDSA.Alg(),
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodES256.Alg(),
}

// minRefreshInterval limits how often an unknown kid forces a JWKS refetch.
const minRefreshInterval = 30 * time.Second

// JWKSConfig configures a JWKSProvider.
type JWKSConfig struct {
	JWKSURL  string
	Issuer   string
	Audience string
	Leeway   time.Duration

	// HTTPClient defaults to an in-memory caching client so the provider's
	// Cache-Control headers decide how often keys are refetched.
	HTTPClient *http.Client
}

// JWKSProvider verifies identity provider ID tokens against the provider's
// published JWKS.
type JWKSProvider struct {
	cfg    JWKSConfig
	client *http.Client
	keys   *jwtx.KeySet

	mu          sync.Mutex
	lastRefresh time.Time
	now         func() time.Time
}

type providerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// NewJWKSProvider builds a provider. Keys are fetched lazily on first use.
func NewJWKSProvider(cfg JWKSConfig) (*JWKSProvider, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("identity: JWKS URL is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("identity: issuer is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
			Timeout:   10 * time.Second,
		}
	}

	return &JWKSProvider{
		cfg:    cfg,
		client: client,
		keys:   jwtx.NewKeySet(),
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source used for exp/nbf checks.
func (p *JWKSProvider) WithClock(now func() time.Time) *JWKSProvider {
	p.now = now
	return p
}

func (p *JWKSProvider) VerifyAssertion(ctx context.Context, credential string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(providerAlgorithms),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(jwtx.ClampLeeway(p.cfg.Leeway)),
		jwt.WithTimeFunc(p.now),
	}
	if p.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.cfg.Audience))
	}

	var fetchErr error
	token, err := jwt.NewParser(opts...).ParseWithClaims(credential, &providerClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, jwtx.ErrUnknownKID
		}
		key, err := p.key(ctx, kid)
		if err != nil && !errors.Is(err, jwtx.ErrNoKey) {
			fetchErr = err
		}
		return key, err
	})
	if fetchErr != nil {
		return Identity{}, fetchErr
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidAssertion, err)
	}

	claims, ok := token.Claims.(*providerClaims)
	if !ok || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidAssertion)
	}
	if claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: missing email", ErrInvalidAssertion)
	}

	return Identity{
		SubjectID:   claims.Subject,
		Email:       strings.ToLower(claims.Email),
		DisplayName: claims.Name,
	}, nil
}

// key returns the public key for kid, refetching the JWKS when the kid is
// unknown and the last fetch is old enough.
func (p *JWKSProvider) key(ctx context.Context, kid string) (any, error) {
	if key, err := p.keys.Get(kid); err == nil {
		return key, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another caller may have refreshed while we waited
	if key, err := p.keys.Get(kid); err == nil {
		return key, nil
	}
	if !p.lastRefresh.IsZero() && p.now().Sub(p.lastRefresh) < minRefreshInterval {
		return nil, jwtx.ErrNoKey
	}

	if err := p.refresh(ctx); err != nil {
		return nil, err
	}
	return p.keys.Get(kid)
}

func (p *JWKSProvider) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: JWKS request failed: %s", ErrUnavailable, resp.Status)
	}

	var set jwtx.JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode JWKS: %w", ErrUnavailable, err)
	}
	if err := p.keys.Replace(set); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	p.lastRefresh = p.now()
	return nil
}
