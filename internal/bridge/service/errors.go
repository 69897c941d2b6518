package service

import (
	"errors"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
)

var (
	// Authorization bridge errors
	ErrInvalidToken         = errors.New("invalid_token")
	ErrInvalidOrExpiredCode = errors.New("invalid_or_expired_code")
	ErrAuthNotComplete      = errors.New("auth_not_complete")
	ErrInvalidPkceVerifier  = errors.New("invalid_pkce_verifier")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrCodeAlreadyConfirmed = errors.New("code_already_confirmed")
	ErrInvalidRedirectURI   = errors.New("invalid_redirect_uri")

	// Entitlement errors
	ErrNoSubscription  = errors.New("no_subscription")
	ErrNoCapacity      = errors.New("no_capacity")
	ErrAlreadyAssigned = errors.New("already_assigned")
	ErrSeatNotFound    = errors.New("seat_not_found")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrNotSeatPlan     = errors.New("not_seat_plan")
	ErrAccountExists   = errors.New("account_exists")

	ErrInvalidRequest      = errors.New("invalid_request")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
)

// outcome turns an operation result into a bounded metrics label.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, known := range []error{
		ErrInvalidToken,
		ErrInvalidOrExpiredCode,
		ErrAuthNotComplete,
		ErrInvalidPkceVerifier,
		ErrAccountNotFound,
		ErrCodeAlreadyConfirmed,
		ErrInvalidRedirectURI,
		ErrNoSubscription,
		ErrNoCapacity,
		ErrAlreadyAssigned,
		ErrSeatNotFound,
		ErrInvalidQuantity,
		ErrForbidden,
		ErrInvalidRole,
		ErrNotSeatPlan,
		ErrAccountExists,
		ErrInvalidRequest,
		ErrUpstreamUnavailable,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "error"
}

// upstream marks collaborator outages so the edge can answer 503 without
// leaking the cause. Anything else passes through unchanged.
func upstream(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, identity.ErrUnavailable),
		errors.Is(err, payment.ErrUnavailable):
		return errors.Join(ErrUpstreamUnavailable, err)
	default:
		return err
	}
}

// invalidToken collapses every token failure into ErrInvalidToken while
// keeping the cause for logs.
func invalidToken(err error) error {
	if errors.Is(err, jwtx.ErrInvalidToken) || errors.Is(err, store.ErrNotFound) {
		return errors.Join(ErrInvalidToken, err)
	}
	return upstream(err)
}
