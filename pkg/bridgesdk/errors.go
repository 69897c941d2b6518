package bridgesdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
)

// Error codes written in the "error" field.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeInvalidOrExpiredCode = "invalid_or_expired_code"
	ErrorCodeAuthNotComplete      = "auth_not_complete"
	ErrorCodeInvalidPkceVerifier  = "invalid_pkce_verifier"
	ErrorCodeAccountNotFound      = "account_not_found"
	ErrorCodeAccountExists        = "account_exists"
	ErrorCodeCodeAlreadyConfirmed = "code_already_confirmed"
	ErrorCodeInvalidRedirectURI   = "invalid_redirect_uri"
	ErrorCodeNoSubscription       = "no_subscription"
	ErrorCodeNoCapacity           = "no_capacity"
	ErrorCodeAlreadyAssigned      = "already_assigned"
	ErrorCodeSeatNotFound         = "seat_not_found"
	ErrorCodeInvalidQuantity      = "invalid_quantity"
	ErrorCodeInvalidRole          = "invalid_role"
	ErrorCodeForbidden            = "forbidden"
	ErrorCodeInvalidSignature     = "invalid_signature"
	ErrorCodeUpstreamUnavailable  = "upstream_unavailable"
	ErrorCodeServerError          = "server_error"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
)

// APIError is the error body every endpoint writes. The server uses it to
// write responses and the client returns it for non-2xx answers.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on Code so callers can errors.Is against the predefined values.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes e as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	httpx.WriteJSON(w, e.StatusCode, e)
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the token is missing, invalid, expired or revoked",
	}

	ErrInvalidOrExpiredCode = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidOrExpiredCode,
		Description: "the authorization code is invalid, expired or already used",
	}

	// ErrAuthNotComplete means the browser has not confirmed yet. Poll again.
	ErrAuthNotComplete = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAuthNotComplete,
		Description: "the browser has not completed sign in",
	}

	ErrInvalidPkceVerifier = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidPkceVerifier,
		Description: "the code verifier does not match the challenge",
	}

	ErrAccountNotFound = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAccountNotFound,
		Description: "no account exists for this user, sign up first",
	}

	ErrAccountExists = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeAccountExists,
		Description: "an account with this email already exists",
	}

	ErrCodeAlreadyConfirmed = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeCodeAlreadyConfirmed,
		Description: "the sign in request was confirmed by another user",
	}

	ErrInvalidRedirectURI = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRedirectURI,
		Description: "the redirect uri is not allowed",
	}

	ErrNoSubscription = &APIError{
		StatusCode:  http.StatusPaymentRequired,
		Code:        ErrorCodeNoSubscription,
		Description: "the organization has no active subscription",
	}

	ErrNoCapacity = &APIError{
		StatusCode:  http.StatusPaymentRequired,
		Code:        ErrorCodeNoCapacity,
		Description: "every seat is assigned, purchase more seats",
	}

	ErrAlreadyAssigned = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeAlreadyAssigned,
		Description: "the user already holds a seat",
	}

	ErrSeatNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeSeatNotFound,
		Description: "no active seat for this user",
	}

	ErrInvalidQuantity = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidQuantity,
		Description: "quantity must be between 1 and 100",
	}

	ErrInvalidRole = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRole,
		Description: "role must be admin or member",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "not allowed to manage this organization",
	}

	ErrInvalidSignature = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidSignature,
		Description: "webhook signature verification failed",
	}

	ErrUpstreamUnavailable = &APIError{
		StatusCode:  http.StatusServiceUnavailable,
		Code:        ErrorCodeUpstreamUnavailable,
		Description: "a backing service is unavailable, retry later",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
