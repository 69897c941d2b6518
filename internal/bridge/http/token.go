package http

import (
	"net/http"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
)

// maxClientInfo bounds the free-form client description stored per session.
const maxClientInfo = 256

// TokenHandler serves refresh rotation and session introspection.
type TokenHandler struct {
	Bridge *service.BridgeService
}

// HandleRefresh godoc
//
//	@Summary		Rotate a refresh token
//	@Description	Issues a new pair and retires the presented refresh token. Presenting a retired refresh token revokes its successor.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		bridgesdk.RefreshRequest	true	"refreshToken"
//	@Success		200		{object}	bridgesdk.TokenResponse		"accessToken, refreshToken, sessionId, expiresIn"
//	@Failure		400		{object}	bridgesdk.ErrorResponse		"invalid_request"
//	@Failure		401		{object}	bridgesdk.ErrorResponse		"invalid_token"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/auth/token/refresh [post].
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var body bridgesdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &body); err != nil || body.RefreshToken == "" {
		bridgesdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.Bridge.Refresh(r.Context(), body.RefreshToken, clientInfo(r, body.ClientInfo))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleSession godoc
//
//	@Summary		Describe the current session
//	@Description	Verifies the access token, checks its session is still active and returns the token's attribution.
//	@Tags			Tokens
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	bridgesdk.SessionResponse	"session and credit pool"
//	@Failure		401	{object}	bridgesdk.ErrorResponse		"invalid_token"
//	@Router			/auth/session [get].
func (h *TokenHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	raw, ok := httpx.BearerToken(r)
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	p, err := h.Bridge.Authenticate(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	c := p.Claims
	resp := bridgesdk.SessionResponse{
		SessionID:         p.SessionID,
		SubjectID:         p.SubjectID,
		PlanType:          c.PlanType,
		Credits:           c.Credits,
		Pool:              c.Pool,
		OrgID:             c.OrgID,
		OrgSubscriptionID: c.OrgSubscriptionID,
		SeatID:            c.SeatID,
		SeatRole:          c.SeatRole,
	}
	if c.ExpiresAt != nil {
		resp.ExpiresAt = c.ExpiresAt.Time
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevoke godoc
//
//	@Summary		Log out
//	@Description	Revokes the session behind the access token. Its refresh token stops working immediately.
//	@Tags			Tokens
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	bridgesdk.OKResponse	"ok"
//	@Failure		401	{object}	bridgesdk.ErrorResponse	"invalid_token"
//	@Router			/auth/session/revoke [post].
func (h *TokenHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok || p.SessionID == "" {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	if err := h.Bridge.Revoke(r.Context(), p.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bridgesdk.OKResponse{OK: true})
}

func tokenResponse(pair domain.TokenPair) bridgesdk.TokenResponse {
	return bridgesdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
	}
}

// clientInfo prefers the extension's own description over its User-Agent.
func clientInfo(r *http.Request, given string) string {
	info := given
	if info == "" {
		info = r.UserAgent()
	}
	if len(info) > maxClientInfo {
		info = info[:maxClientInfo]
	}
	return info
}
