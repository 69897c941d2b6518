package sqlstore

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

type creditsRepo struct {
	queries
}

func (r *creditsRepo) AppendCreditTransaction(ctx context.Context, t domain.CreditTransaction) error {
	_, err := r.exec(ctx, `
		INSERT INTO credit_transactions (id, subject_id, org_id, seat_id, delta, balance_after, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.SubjectID,
		mapOptionalString(t.OrgID),
		mapOptionalString(t.SeatID),
		t.Delta,
		t.BalanceAfter,
		t.Reason,
		t.CreatedAt.UTC(),
	)
	return err
}

// ListCreditTransactions is newest first. Rows sharing a timestamp fall back
// to insertion order through seq.
func (r *creditsRepo) ListCreditTransactions(ctx context.Context, subjectID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.query(ctx, `
		SELECT id, subject_id, org_id, seat_id, delta, balance_after, reason, created_at
		FROM credit_transactions
		WHERE subject_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	return collect(r.queries, rows, func(row scanner) (domain.CreditTransaction, error) {
		var (
			t      domain.CreditTransaction
			orgID  sql.NullString
			seatID sql.NullString
		)
		err := row.Scan(&t.ID, &t.SubjectID, &orgID, &seatID, &t.Delta, &t.BalanceAfter, &t.Reason, &t.CreatedAt)
		t.OrgID = mapNullStringPtr(orgID)
		t.SeatID = mapNullStringPtr(seatID)
		t.CreatedAt = t.CreatedAt.UTC()
		return t, err
	})
}
