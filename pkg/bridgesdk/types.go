package bridgesdk

import (
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// OKResponse acknowledges a state change.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse is the bridge's public key set.
type JWKSResponse = jwtx.JWKS

// ============================================================================
// Authorization code handoff
// ============================================================================

// InitiateRequest starts an extension login. State is generated by the
// server when empty.
type InitiateRequest struct {
	RedirectURI   string `json:"redirectUri"`
	PKCEChallenge string `json:"pkceChallenge"`
	State         string `json:"state,omitempty"`
}

// InitiateResponse carries the one-time code. Only the extension ever sees
// it; the browser confirms by state.
type InitiateResponse struct {
	State     string    `json:"state"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConfirmRequest attaches the signed-in browser user to a pending login.
type ConfirmRequest struct {
	State     string `json:"state"`
	SubjectID string `json:"subjectId"`
}

type ConfirmResponse struct {
	OK          bool   `json:"ok"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

type ExchangeRequest struct {
	Code         string `json:"code"`
	State        string `json:"state"`
	PKCEVerifier string `json:"pkceVerifier"`
	ClientInfo   string `json:"clientInfo,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	ClientInfo   string `json:"clientInfo,omitempty"`
}

// TokenResponse is returned by exchange and refresh. ExpiresIn is the access
// token lifetime in seconds.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// SessionResponse describes the session behind an access token.
type SessionResponse struct {
	SessionID         string    `json:"sessionId"`
	SubjectID         string    `json:"subjectId"`
	PlanType          string    `json:"planType"`
	Credits           int64     `json:"credits"`
	Pool              string    `json:"pool"`
	OrgID             string    `json:"orgId,omitempty"`
	OrgSubscriptionID string    `json:"orgSubscriptionId,omitempty"`
	SeatID            string    `json:"seatId,omitempty"`
	SeatRole          string    `json:"seatRole,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// ============================================================================
// Accounts
// ============================================================================

type AccountResponse struct {
	SubjectID    string       `json:"subjectId"`
	Email        string       `json:"email"`
	DisplayName  string       `json:"displayName,omitempty"`
	PersonalPlan string       `json:"personalPlan"`
	PlanType     string       `json:"planType"`
	Credits      int64        `json:"credits"`
	Pool         string       `json:"pool"`
	Org          *OrgResponse `json:"org,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// OrgResponse is the organization an account currently draws credits from.
type OrgResponse struct {
	OrgID             string `json:"orgId"`
	OrgSubscriptionID string `json:"orgSubscriptionId"`
	SeatID            string `json:"seatId"`
	SeatRole          string `json:"seatRole"`
}

type CreditTransactionResponse struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"orgId,omitempty"`
	SeatID       string    `json:"seatId,omitempty"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balanceAfter"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CreditHistoryResponse struct {
	Transactions []CreditTransactionResponse `json:"transactions"`
}

// ============================================================================
// Seats and billing
// ============================================================================

type AssignSeatRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

type AssignSeatResponse struct {
	OK   bool     `json:"ok"`
	Seat SeatInfo `json:"seat"`
}

type RevokeSeatRequest struct {
	SubjectID string `json:"subjectId"`
}

type SeatInfo struct {
	ID             string     `json:"id"`
	SubjectID      string     `json:"subjectId,omitempty"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	CreditsGranted int64      `json:"creditsGranted"`
	AssignedAt     time.Time  `json:"assignedAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

type SeatListResponse struct {
	SeatsUsed        int        `json:"seatsUsed"`
	SeatsTotal       int        `json:"seatsTotal"`
	PlanType         string     `json:"planType"`
	BillingFrequency string     `json:"billingFrequency"`
	Status           string     `json:"status"`
	Seats            []SeatInfo `json:"seats"`
}

type PurchaseSeatsRequest struct {
	Quantity int `json:"quantity"`
}

// CheckoutResponse points the browser at the processor's hosted checkout.
type CheckoutResponse struct {
	CheckoutID  string `json:"checkoutId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type PortalResponse struct {
	URL string `json:"url"`
}
