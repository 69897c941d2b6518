package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
)

// errAccountMissing is account_not_found for reads of the caller's own
// account, where 404 fits better than the exchange's 400.
var errAccountMissing = &bridgesdk.APIError{
	StatusCode:  http.StatusNotFound,
	Code:        bridgesdk.ErrorCodeAccountNotFound,
	Description: bridgesdk.ErrAccountNotFound.Description,
}

type AccountsHandler struct {
	Accounts *service.AccountService
}

// HandleRegister godoc
//
//	@Summary		Sign up
//	@Description	Creates the account for the identity provider subject on the starter plan. Registering again returns the existing account.
//	@Tags			Accounts
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	bridgesdk.AccountResponse	"existing account"
//	@Success		201	{object}	bridgesdk.AccountResponse	"new account"
//	@Failure		401	{object}	bridgesdk.ErrorResponse		"invalid_token"
//	@Failure		409	{object}	bridgesdk.ErrorResponse		"account_exists"
//	@Router			/accounts/me [post].
func (h *AccountsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	account, created, err := h.Accounts.Register(r.Context(), identity.Identity{
		SubjectID:   p.SubjectID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, accountResponse(service.AccountView{Account: account}))
}

// HandleGet godoc
//
//	@Summary		Get the caller's account
//	@Description	Returns plan, credits and the pool they are drawn from.
//	@Tags			Accounts
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	bridgesdk.AccountResponse
//	@Failure		401	{object}	bridgesdk.ErrorResponse	"invalid_token"
//	@Failure		404	{object}	bridgesdk.ErrorResponse	"account_not_found"
//	@Router			/accounts/me [get].
func (h *AccountsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	view, err := h.Accounts.Get(r.Context(), p.SubjectID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			errAccountMissing.WriteError(w)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(view))
}

// HandleCredits godoc
//
//	@Summary		List credit ledger entries
//	@Tags			Accounts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int								false	"entries to return (1-100, default 20)"
//	@Success		200		{object}	bridgesdk.CreditHistoryResponse
//	@Failure		401		{object}	bridgesdk.ErrorResponse	"invalid_token"
//	@Router			/accounts/me/credits [get].
func (h *AccountsHandler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		bridgesdk.ErrInvalidToken.WriteError(w)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			bridgesdk.ErrInvalidRequest.WriteError(w)
			return
		}
		limit = n
	}

	txs, err := h.Accounts.CreditHistory(r.Context(), p.SubjectID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := bridgesdk.CreditHistoryResponse{Transactions: make([]bridgesdk.CreditTransactionResponse, 0, len(txs))}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, creditResponse(tx))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func accountResponse(v service.AccountView) bridgesdk.AccountResponse {
	a := v.Account
	resp := bridgesdk.AccountResponse{
		SubjectID:    a.SubjectID,
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		PersonalPlan: a.PersonalPlan,
		PlanType:     a.PlanType,
		Credits:      a.Credits,
		Pool:         jwtx.PoolPersonal,
		CreatedAt:    a.CreatedAt,
	}
	if v.Org != nil {
		resp.Pool = jwtx.PoolOrganization
		resp.Org = &bridgesdk.OrgResponse{
			OrgID:             v.Org.OrgID,
			OrgSubscriptionID: v.Org.OrgSubscriptionID,
			SeatID:            v.Org.SeatID,
			SeatRole:          v.Org.SeatRole,
		}
	}
	return resp
}

func creditResponse(tx domain.CreditTransaction) bridgesdk.CreditTransactionResponse {
	resp := bridgesdk.CreditTransactionResponse{
		ID:           tx.ID,
		Delta:        tx.Delta,
		BalanceAfter: tx.BalanceAfter,
		Reason:       tx.Reason,
		CreatedAt:    tx.CreatedAt,
	}
	if tx.OrgID != nil {
		resp.OrgID = *tx.OrgID
	}
	if tx.SeatID != nil {
		resp.SeatID = *tx.SeatID
	}
	return resp
}
