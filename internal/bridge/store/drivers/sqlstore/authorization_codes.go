package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
)

const authorizationCodeColumns = `id, state, code_hash, code_challenge, redirect_uri, subject_id, created_at, confirmed_at, expires_at`

type authorizationCodesRepo struct {
	queries
}

func scanAuthorizationCode(row scanner) (domain.AuthorizationCode, error) {
	var (
		c           domain.AuthorizationCode
		codeHash    sql.NullString
		subjectID   sql.NullString
		confirmedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.State,
		&codeHash,
		&c.CodeChallenge,
		&c.RedirectURI,
		&subjectID,
		&c.CreatedAt,
		&confirmedAt,
		&c.ExpiresAt,
	)
	c.CodeHash = mapNullStringPtr(codeHash)
	c.SubjectID = mapNullStringPtr(subjectID)
	c.ConfirmedAt = mapNullTimePtr(confirmedAt)
	c.CreatedAt, c.ExpiresAt = c.CreatedAt.UTC(), c.ExpiresAt.UTC()
	return c, err
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	_, err := r.exec(ctx, `
		INSERT INTO authorization_codes (`+authorizationCodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.State,
		mapOptionalString(c.CodeHash),
		c.CodeChallenge,
		c.RedirectURI,
		mapOptionalString(c.SubjectID),
		c.CreatedAt.UTC(),
		mapOptionalTime(c.ConfirmedAt),
		c.ExpiresAt.UTC(),
	)
	return err
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByState(ctx context.Context, state string) (domain.AuthorizationCode, error) {
	c, err := scanAuthorizationCode(r.queryRow(ctx,
		`SELECT `+authorizationCodeColumns+` FROM authorization_codes WHERE state = ?`, state))
	if err != nil {
		return domain.AuthorizationCode{}, r.scanErr(err)
	}
	return c, nil
}

func (r *authorizationCodesRepo) ConfirmAuthorizationCode(ctx context.Context, id, subjectID, codeHash string, now time.Time) error {
	n, err := r.exec(ctx, `
		UPDATE authorization_codes SET subject_id = ?, code_hash = ?, confirmed_at = ?
		WHERE id = ? AND (subject_id IS NULL OR subject_id = ?)`,
		subjectID, codeHash, now.UTC(), id, subjectID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *authorizationCodesRepo) DeleteAuthorizationCode(ctx context.Context, id, codeHash string) error {
	return r.execOne(ctx, `DELETE FROM authorization_codes WHERE id = ? AND code_hash = ?`, id, codeHash)
}

func (r *authorizationCodesRepo) DeleteAuthorizationCodeByID(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM authorization_codes WHERE id = ?`, id)
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM authorization_codes WHERE expires_at <= ?`, now.UTC())
}
