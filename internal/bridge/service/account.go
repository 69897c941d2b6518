package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/plans"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/idx"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

// AccountService is the primary signup path. An extension can only exchange
// a code for a subject that registered here first.
type AccountService struct {
	Store   store.Store
	Catalog *plans.Catalog

	// Seats claims invitations sent before the account existed. Nil skips
	// the claim.
	Seats *EntitlementService

	Now func() time.Time
}

// AccountView is an account with its current credit pool.
type AccountView struct {
	Account domain.Account
	Org     *jwtx.OrgAttribution
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates the account for a verified identity on the starter plan,
// then claims any seat invitation waiting for its email. Registering an
// existing subject returns the stored account unchanged.
func (s *AccountService) Register(ctx context.Context, id identity.Identity) (domain.Account, bool, error) {
	l := slogx.FromContext(ctx)

	if id.SubjectID == "" || id.Email == "" {
		return domain.Account{}, false, ErrInvalidRequest
	}

	existing, err := s.Store.Accounts().GetAccount(ctx, id.SubjectID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, false, upstream(err)
	}

	now := s.now()
	plan, credits := s.Catalog.Baseline(plans.FallbackPlan)
	a := domain.Account{
		SubjectID:    id.SubjectID,
		Email:        normalizeEmail(id.Email),
		DisplayName:  id.DisplayName,
		PersonalPlan: plan,
		PlanType:     plan,
		Credits:      credits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, a); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Either a concurrent registration of the same subject or the
			// email belongs to someone else
			if existing, err := s.Store.Accounts().GetAccount(ctx, id.SubjectID); err == nil {
				return existing, false, nil
			}
			return domain.Account{}, false, ErrAccountExists
		}
		return domain.Account{}, false, upstream(err)
	}

	l.Info("account registered", slog.String("subject_id", a.SubjectID), slog.String("plan_type", plan))

	err = s.Store.Credits().AppendCreditTransaction(ctx, domain.CreditTransaction{
		ID:           idx.NewAt(now).String(),
		SubjectID:    a.SubjectID,
		Delta:        credits,
		BalanceAfter: credits,
		Reason:       domain.CreditReasonSignup,
		CreatedAt:    now,
	})
	if err != nil {
		l.Error("failed to append credit transaction", slog.Any("err", err))
	}

	if s.Seats != nil {
		_, claimed, err := s.Seats.ClaimPendingSeat(ctx, a.SubjectID)
		switch {
		case err != nil:
			l.Error("failed to claim pending seat", slog.String("subject_id", a.SubjectID), slog.Any("err", err))
		case claimed:
			if updated, err := s.Store.Accounts().GetAccount(ctx, a.SubjectID); err == nil {
				a = updated
			}
		}
	}
	return a, true, nil
}

// Get returns the account and, when it holds an active seat, the
// organization its credits come from.
func (s *AccountService) Get(ctx context.Context, subjectID string) (AccountView, error) {
	a, err := s.Store.Accounts().GetAccount(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccountView{}, ErrAccountNotFound
		}
		return AccountView{}, upstream(err)
	}

	org, err := orgAttribution(ctx, s.Store, subjectID)
	if err != nil {
		return AccountView{}, upstream(err)
	}
	return AccountView{Account: a, Org: org}, nil
}

// CreditHistory returns the newest ledger entries for subjectID.
func (s *AccountService) CreditHistory(ctx context.Context, subjectID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	txs, err := s.Store.Credits().ListCreditTransactions(ctx, subjectID, limit)
	return txs, upstream(err)
}
