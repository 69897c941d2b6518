package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
)

// SeatsHandler serves the organization seat and billing routes. The caller
// must own or administer the organization.
type SeatsHandler struct {
	Entitlements *service.EntitlementService
}

// HandleAssign godoc
//
//	@Summary		Assign a seat
//	@Description	Gives the account registered under email a seat and replaces its credits with the plan's seat grant. An email with no account gets a pending seat, activated when it registers.
//	@Tags			Seats
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			orgId	path		string							true	"organization id"
//	@Param			request	body		bridgesdk.AssignSeatRequest		true	"email, role (admin|member, default member)"
//	@Success		200		{object}	bridgesdk.AssignSeatResponse
//	@Failure		400		{object}	bridgesdk.ErrorResponse	"already_assigned, invalid_role"
//	@Failure		402		{object}	bridgesdk.ErrorResponse	"no_subscription, no_capacity"
//	@Failure		403		{object}	bridgesdk.ErrorResponse	"forbidden"
//	@Router			/org/{orgId}/seats/assign [post].
func (h *SeatsHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	var body bridgesdk.AssignSeatRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}
	role := strings.ToLower(strings.TrimSpace(body.Role))
	if role == "" {
		role = domain.RoleMember
	}

	seat, err := h.Entitlements.AssignSeat(r.Context(), r.PathValue("orgId"), p.SubjectID, body.Email, role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bridgesdk.AssignSeatResponse{OK: true, Seat: seatInfo(seat)})
}

// HandleRevoke godoc
//
//	@Summary		Revoke a seat
//	@Description	Ends the subject's seat, frees capacity and resets the subject to its personal plan baseline.
//	@Tags			Seats
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			orgId	path		string						true	"organization id"
//	@Param			request	body		bridgesdk.RevokeSeatRequest	true	"subjectId"
//	@Success		200		{object}	bridgesdk.OKResponse
//	@Failure		403		{object}	bridgesdk.ErrorResponse	"forbidden"
//	@Failure		404		{object}	bridgesdk.ErrorResponse	"seat_not_found"
//	@Router			/org/{orgId}/seats/revoke [post].
func (h *SeatsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	var body bridgesdk.RevokeSeatRequest
	if err := httpx.DecodeJSON(r, &body); err != nil || body.SubjectID == "" {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Entitlements.RevokeSeat(r.Context(), r.PathValue("orgId"), p.SubjectID, body.SubjectID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bridgesdk.OKResponse{OK: true})
}

// HandleList godoc
//
//	@Summary		List seats
//	@Tags			Seats
//	@Produce		json
//	@Security		BearerAuth
//	@Param			orgId	path		string	true	"organization id"
//	@Success		200		{object}	bridgesdk.SeatListResponse
//	@Failure		402		{object}	bridgesdk.ErrorResponse	"no_subscription"
//	@Failure		403		{object}	bridgesdk.ErrorResponse	"forbidden"
//	@Router			/org/{orgId}/seats [get].
func (h *SeatsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	roster, err := h.Entitlements.ListSeats(r.Context(), r.PathValue("orgId"), p.SubjectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sub := roster.Subscription
	resp := bridgesdk.SeatListResponse{
		SeatsUsed:        sub.SeatsUsed,
		SeatsTotal:       sub.SeatsTotal,
		PlanType:         sub.PlanType,
		BillingFrequency: sub.BillingFrequency,
		Status:           sub.Status,
		Seats:            make([]bridgesdk.SeatInfo, 0, len(roster.Seats)),
	}
	for _, seat := range roster.Seats {
		resp.Seats = append(resp.Seats, seatInfo(seat))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// maxPurchaseQuantity bounds one seat checkout at the edge. The engine keeps
// its own, looser cap.
const maxPurchaseQuantity = 100

// HandlePurchase godoc
//
//	@Summary		Buy seats
//	@Description	Opens a hosted checkout. Capacity grows only when the processor confirms payment.
//	@Tags			Billing
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			orgId	path		string							true	"organization id"
//	@Param			request	body		bridgesdk.PurchaseSeatsRequest	true	"quantity (1-100)"
//	@Success		200		{object}	bridgesdk.CheckoutResponse
//	@Failure		400		{object}	bridgesdk.ErrorResponse	"invalid_quantity"
//	@Failure		402		{object}	bridgesdk.ErrorResponse	"no_subscription"
//	@Failure		403		{object}	bridgesdk.ErrorResponse	"forbidden"
//	@Failure		503		{object}	bridgesdk.ErrorResponse	"upstream_unavailable"
//	@Router			/org/{orgId}/seats/purchase [post].
func (h *SeatsHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	var body bridgesdk.PurchaseSeatsRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if body.Quantity < 1 || body.Quantity > maxPurchaseQuantity {
		bridgesdk.ErrInvalidQuantity.WriteError(w)
		return
	}

	checkout, err := h.Entitlements.BuySeats(r.Context(), r.PathValue("orgId"), p.SubjectID, body.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bridgesdk.CheckoutResponse{CheckoutID: checkout.ID, CheckoutURL: checkout.URL})
}

// HandlePortal godoc
//
//	@Summary		Open the billing portal
//	@Description	Returns a processor-hosted portal session for the organization owner.
//	@Tags			Billing
//	@Produce		json
//	@Security		BearerAuth
//	@Param			orgId	path		string	true	"organization id"
//	@Success		200		{object}	bridgesdk.PortalResponse
//	@Failure		403		{object}	bridgesdk.ErrorResponse	"forbidden"
//	@Failure		503		{object}	bridgesdk.ErrorResponse	"upstream_unavailable"
//	@Router			/org/{orgId}/billing/portal [post].
func (h *SeatsHandler) HandlePortal(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	url, err := h.Entitlements.PortalURL(r.Context(), r.PathValue("orgId"), p.SubjectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bridgesdk.PortalResponse{URL: url})
}

func seatInfo(s domain.Seat) bridgesdk.SeatInfo {
	info := bridgesdk.SeatInfo{
		ID:             s.ID,
		Email:          s.Email,
		Role:           s.Role,
		Status:         s.Status,
		CreditsGranted: s.CreditsGranted,
		AssignedAt:     s.AssignedAt,
		ExpiresAt:      s.ExpiresAt,
	}
	if s.SubjectID != nil {
		info.SubjectID = *s.SubjectID
	}
	return info
}
