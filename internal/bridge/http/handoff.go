package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
)

// HandoffHandler serves the three legs of the extension login.
type HandoffHandler struct {
	Bridge *service.BridgeService
}

// HandleInitiate godoc
//
//	@Summary		Start an extension login
//	@Description	Creates a pending authorization code bound to an S256 PKCE challenge.
//	@Description	The one-time code is returned to the extension only; the browser confirms by state.
//	@Tags			Handoff
//	@Accept			json
//	@Produce		json
//	@Param			request	body		bridgesdk.InitiateRequest	true	"redirectUri, pkceChallenge, optional state"
//	@Success		200		{object}	bridgesdk.InitiateResponse	"state, code, expiresAt"
//	@Failure		400		{object}	bridgesdk.ErrorResponse		"invalid_request, invalid_redirect_uri"
//	@Router			/auth/code/initiate [post].
func (h *HandoffHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	var body bridgesdk.InitiateRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pending, err := h.Bridge.Initiate(r.Context(), service.InitiateRequest{
		State:         strings.TrimSpace(body.State),
		CodeChallenge: strings.TrimSpace(body.PKCEChallenge),
		RedirectURI:   strings.TrimSpace(body.RedirectURI),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bridgesdk.InitiateResponse{
		State:     pending.State,
		Code:      pending.Code,
		ExpiresAt: pending.ExpiresAt,
	})
}

// HandleConfirm godoc
//
//	@Summary		Confirm a pending login from the browser
//	@Description	Attaches the signed-in subject to the pending code. The caller authenticates with the identity provider's token.
//	@Tags			Handoff
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		bridgesdk.ConfirmRequest	true	"state, subjectId"
//	@Success		200		{object}	bridgesdk.ConfirmResponse	"ok, redirectUri"
//	@Failure		400		{object}	bridgesdk.ErrorResponse		"invalid_request, invalid_or_expired_code"
//	@Failure		401		{object}	bridgesdk.ErrorResponse		"invalid_token"
//	@Failure		403		{object}	bridgesdk.ErrorResponse		"forbidden"
//	@Failure		409		{object}	bridgesdk.ErrorResponse		"code_already_confirmed"
//	@Router			/auth/code/confirm [post].
func (h *HandoffHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	var body bridgesdk.ConfirmRequest
	if err := httpx.DecodeJSON(r, &body); err != nil || body.State == "" {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// The browser may only confirm for the subject it is signed in as
	if body.SubjectID != "" && body.SubjectID != p.SubjectID {
		bridgesdk.ErrForbidden.WriteError(w)
		return
	}

	redirectURI, err := h.Bridge.Confirm(r.Context(), body.State, p.SubjectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bridgesdk.ConfirmResponse{OK: true, RedirectURI: redirectURI})
}

// HandleExchange godoc
//
//	@Summary		Redeem a confirmed code
//	@Description	Exchanges the one-time code, its state and the PKCE verifier for an access/refresh token pair.
//	@Description	Answers auth_not_complete until the browser has confirmed. A wrong verifier burns the code.
//	@Tags			Handoff
//	@Accept			json
//	@Produce		json
//	@Param			request	body		bridgesdk.ExchangeRequest	true	"code, state, pkceVerifier"
//	@Success		200		{object}	bridgesdk.TokenResponse		"accessToken, refreshToken, sessionId, expiresIn"
//	@Failure		400		{object}	bridgesdk.ErrorResponse		"invalid_or_expired_code, auth_not_complete, invalid_pkce_verifier, account_not_found"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/auth/code/exchange [post].
func (h *HandoffHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	var body bridgesdk.ExchangeRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if body.Code == "" || body.State == "" || body.PKCEVerifier == "" {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Bridge.Exchange(r.Context(), service.ExchangeRequest{
		Code:         body.Code,
		State:        body.State,
		CodeVerifier: body.PKCEVerifier,
		ClientInfo:   clientInfo(r, body.ClientInfo),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}
