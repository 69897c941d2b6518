package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

// serviceErrors maps service sentinels to the error written to the client.
// Order matters: the first match wins.
var serviceErrors = []struct {
	err error
	api *bridgesdk.APIError
}{
	{service.ErrUpstreamUnavailable, bridgesdk.ErrUpstreamUnavailable},
	{service.ErrInvalidToken, bridgesdk.ErrInvalidToken},
	{service.ErrInvalidOrExpiredCode, bridgesdk.ErrInvalidOrExpiredCode},
	{service.ErrAuthNotComplete, bridgesdk.ErrAuthNotComplete},
	{service.ErrInvalidPkceVerifier, bridgesdk.ErrInvalidPkceVerifier},
	{service.ErrAccountNotFound, bridgesdk.ErrAccountNotFound},
	{service.ErrAccountExists, bridgesdk.ErrAccountExists},
	{service.ErrCodeAlreadyConfirmed, bridgesdk.ErrCodeAlreadyConfirmed},
	{service.ErrInvalidRedirectURI, bridgesdk.ErrInvalidRedirectURI},
	{service.ErrNoSubscription, bridgesdk.ErrNoSubscription},
	{service.ErrNoCapacity, bridgesdk.ErrNoCapacity},
	{service.ErrAlreadyAssigned, bridgesdk.ErrAlreadyAssigned},
	{service.ErrSeatNotFound, bridgesdk.ErrSeatNotFound},
	{service.ErrInvalidQuantity, bridgesdk.ErrInvalidQuantity},
	{service.ErrInvalidRole, bridgesdk.ErrInvalidRole},
	{service.ErrForbidden, bridgesdk.ErrForbidden},
	{service.ErrNotSeatPlan, bridgesdk.ErrInvalidRequest},
	{service.ErrInvalidRequest, bridgesdk.ErrInvalidRequest},
}

// writeServiceError answers with the client error matching err. Anything
// unknown is logged and hidden behind server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			if m.api.StatusCode >= http.StatusInternalServerError {
				slogx.FromContext(r.Context()).Error("request failed", "err", err)
			}
			m.api.WriteError(w)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("unexpected error", "err", err)
	bridgesdk.ErrServerError.WriteError(w)
}
