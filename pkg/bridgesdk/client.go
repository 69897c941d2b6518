package bridgesdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
)

// Client talks to a seatbridge server. Calls that need a caller take the
// bearer credential explicitly: a bridge access token from an extension, or
// the identity provider's assertion from the browser.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GeneratePKCE returns a fresh S256 verifier and its challenge.
func GeneratePKCE() (verifier, challenge string, err error) {
	verifier, err = cryptox.GeneratePKCEVerifier()
	if err != nil {
		return "", "", err
	}
	return verifier, cryptox.PKCEChallenge(verifier), nil
}

// ============================================================================
// Handoff
// ============================================================================

// Initiate opens a pending login and returns the one-time code.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	var out InitiateResponse
	if err := c.call(ctx, http.MethodPost, "/auth/code/initiate", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Confirm attaches the browser's signed-in subject to the pending login.
// assertion is the identity provider's token for that subject.
func (c *Client) Confirm(ctx context.Context, assertion string, req ConfirmRequest) (*ConfirmResponse, error) {
	var out ConfirmResponse
	if err := c.call(ctx, http.MethodPost, "/auth/code/confirm", assertion, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exchange redeems a confirmed code for a token pair.
func (c *Client) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.call(ctx, http.MethodPost, "/auth/code/exchange", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollExchange retries Exchange every interval while the browser has not
// confirmed, until ctx ends.
func (c *Client) PollExchange(ctx context.Context, req ExchangeRequest, interval time.Duration) (*TokenResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tokens, err := c.Exchange(ctx, req)
		if !errors.Is(err, ErrAuthNotComplete) {
			return tokens, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh rotates a refresh token. The old refresh token is dead once this
// returns, whatever the outcome of the caller's own persistence.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	req := RefreshRequest{RefreshToken: refreshToken}
	if err := c.call(ctx, http.MethodPost, "/auth/token/refresh", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession describes the session behind accessToken.
func (c *Client) GetSession(ctx context.Context, accessToken string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.call(ctx, http.MethodGet, "/auth/session", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeSession logs the session behind accessToken out.
func (c *Client) RevokeSession(ctx context.Context, accessToken string) error {
	return c.call(ctx, http.MethodPost, "/auth/session/revoke", accessToken, nil, nil)
}

// ============================================================================
// Accounts
// ============================================================================

// Register creates the account for the subject behind assertion.
func (c *Client) Register(ctx context.Context, assertion string) (*AccountResponse, error) {
	var out AccountResponse
	if err := c.call(ctx, http.MethodPost, "/accounts/me", assertion, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAccount(ctx context.Context, bearer string) (*AccountResponse, error) {
	var out AccountResponse
	if err := c.call(ctx, http.MethodGet, "/accounts/me", bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreditHistory lists the caller's most recent ledger entries. A zero limit
// uses the server default.
func (c *Client) CreditHistory(ctx context.Context, bearer string, limit int) (*CreditHistoryResponse, error) {
	path := "/accounts/me/credits"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out CreditHistoryResponse
	if err := c.call(ctx, http.MethodGet, path, bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Seats and billing
// ============================================================================

func orgPath(orgID, suffix string) string {
	return "/org/" + url.PathEscape(orgID) + suffix
}

func (c *Client) AssignSeat(ctx context.Context, bearer, orgID string, req AssignSeatRequest) (*AssignSeatResponse, error) {
	var out AssignSeatResponse
	if err := c.call(ctx, http.MethodPost, orgPath(orgID, "/seats/assign"), bearer, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RevokeSeat(ctx context.Context, bearer, orgID, subjectID string) error {
	req := RevokeSeatRequest{SubjectID: subjectID}
	return c.call(ctx, http.MethodPost, orgPath(orgID, "/seats/revoke"), bearer, req, &OKResponse{})
}

func (c *Client) ListSeats(ctx context.Context, bearer, orgID string) (*SeatListResponse, error) {
	var out SeatListResponse
	if err := c.call(ctx, http.MethodGet, orgPath(orgID, "/seats"), bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PurchaseSeats opens a checkout for quantity more seats. Capacity grows
// once the processor confirms payment.
func (c *Client) PurchaseSeats(ctx context.Context, bearer, orgID string, quantity int) (*CheckoutResponse, error) {
	var out CheckoutResponse
	req := PurchaseSeatsRequest{Quantity: quantity}
	if err := c.call(ctx, http.MethodPost, orgPath(orgID, "/seats/purchase"), bearer, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BillingPortal(ctx context.Context, bearer, orgID string) (*PortalResponse, error) {
	var out PortalResponse
	if err := c.call(ctx, http.MethodPost, orgPath(orgID, "/billing/portal"), bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Discovery and health
// ============================================================================

// GetJWKS fetches the keys that verify bridge access tokens.
func (c *Client) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var out JWKSResponse
	if err := c.call(ctx, http.MethodGet, "/.well-known/jwks.json", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.call(ctx, http.MethodGet, path, "", nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &out, nil
}
