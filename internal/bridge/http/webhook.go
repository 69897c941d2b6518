package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

// WebhookHandler receives signed payment processor events.
type WebhookHandler struct {
	Entitlements *service.EntitlementService
	Secret       []byte
	Tolerance    time.Duration
	Now          func() time.Time
}

// ServeHTTP godoc
//
//	@Summary		Payment processor webhook
//	@Description	Verifies the Bridge-Signature header (ts=<unix>;h1=<hex HMAC-SHA256 of "ts:body">) and applies the event.
//	@Description	Redelivered events are acknowledged without effect.
//	@Tags			Billing
//	@Accept			json
//	@Produce		json
//	@Param			Bridge-Signature	header		string					true	"ts=<unix>;h1=<hex>"
//	@Success		200					{object}	bridgesdk.OKResponse
//	@Failure		400					{object}	bridgesdk.ErrorResponse	"invalid_signature, invalid_request"
//	@Failure		503					{object}	bridgesdk.ErrorResponse	"upstream_unavailable"
//	@Router			/billing/webhook [post].
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxBodyBytes))
	if err != nil {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	tolerance := h.Tolerance
	if tolerance <= 0 {
		tolerance = payment.DefaultSignatureTolerance
	}

	if err := payment.VerifySignature(h.Secret, r.Header.Get(payment.SignatureHeader), body, now, tolerance); err != nil {
		log.Warn("webhook signature rejected", "err", err)
		bridgesdk.ErrInvalidSignature.WriteError(w)
		return
	}

	event, err := payment.ParseEvent(body)
	if err != nil {
		log.Warn("webhook event malformed", "err", err)
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := slogx.WithContext(r.Context(), log.With("event_id", event.ID, "event_type", event.Type))
	if err := h.Entitlements.HandleEvent(ctx, event); err != nil {
		// Upstream failures are logged by writeServiceError
		if !errors.Is(err, service.ErrUpstreamUnavailable) {
			slogx.FromContext(ctx).Warn("webhook event rejected", "err", err)
		}
		writeServiceError(w, r.WithContext(ctx), err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bridgesdk.OKResponse{OK: true})
}
