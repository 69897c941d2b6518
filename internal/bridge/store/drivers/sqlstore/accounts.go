package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

const accountColumns = `subject_id, email, display_name, personal_plan, plan_type, credits, created_at, updated_at`

type accountsRepo struct {
	queries
}

func scanAccount(row scanner) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.SubjectID,
		&a.Email,
		&a.DisplayName,
		&a.PersonalPlan,
		&a.PlanType,
		&a.Credits,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return a, err
}

func (r *accountsRepo) GetAccount(ctx context.Context, subjectID string) (domain.Account, error) {
	a, err := scanAccount(r.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE subject_id = ?`, subjectID))
	if err != nil {
		return domain.Account{}, r.scanErr(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	a, err := scanAccount(r.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
	if err != nil {
		return domain.Account{}, r.scanErr(err)
	}
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SubjectID,
		a.Email,
		a.DisplayName,
		a.PersonalPlan,
		a.PlanType,
		a.Credits,
		a.CreatedAt.UTC(),
		a.UpdatedAt.UTC(),
	)
	return err
}

func (r *accountsRepo) SetEntitlement(ctx context.Context, subjectID, planType string, credits int64, now time.Time) error {
	return r.execOne(ctx, `
		UPDATE accounts SET plan_type = ?, credits = ?, updated_at = ?
		WHERE subject_id = ?`,
		planType, credits, now.UTC(), subjectID,
	)
}
