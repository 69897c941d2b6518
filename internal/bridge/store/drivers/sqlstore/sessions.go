package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
)

const sessionColumns = `id, subject_id, access_hash, refresh_hash, client_info, created_at, last_used_at,
	expires_at, is_active, replaced_by, revoked_at`

type sessionsRepo struct {
	queries
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		s          domain.Session
		replacedBy sql.NullString
		revokedAt  sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.SubjectID,
		&s.AccessHash,
		&s.RefreshHash,
		&s.ClientInfo,
		&s.CreatedAt,
		&s.LastUsedAt,
		&s.ExpiresAt,
		&s.Active,
		&replacedBy,
		&revokedAt,
	)
	s.ReplacedBy = mapNullStringPtr(replacedBy)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	s.CreatedAt, s.LastUsedAt, s.ExpiresAt = s.CreatedAt.UTC(), s.LastUsedAt.UTC(), s.ExpiresAt.UTC()
	return s, err
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.SubjectID,
		s.AccessHash,
		s.RefreshHash,
		s.ClientInfo,
		s.CreatedAt.UTC(),
		s.LastUsedAt.UTC(),
		s.ExpiresAt.UTC(),
		s.Active,
		mapOptionalString(s.ReplacedBy),
		mapOptionalTime(s.RevokedAt),
	)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	s, err := scanSession(r.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return domain.Session{}, r.scanErr(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetActiveSession(ctx context.Context, id string, now time.Time) (domain.Session, error) {
	s, err := scanSession(r.queryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE id = ? AND is_active = ? AND expires_at > ?`, id, true, now.UTC()))
	if err != nil {
		return domain.Session{}, r.scanErr(err)
	}
	return s, nil
}

func (r *sessionsRepo) MarkSessionReplaced(ctx context.Context, oldID, successorID string, now time.Time) error {
	n, err := r.exec(ctx, `
		UPDATE sessions SET is_active = ?, replaced_by = ?, revoked_at = ?, last_used_at = ?
		WHERE id = ? AND is_active = ?`,
		false, successorID, now.UTC(), now.UTC(), oldID, true,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, now time.Time) error {
	n, err := r.exec(ctx, `
		UPDATE sessions SET is_active = ?, revoked_at = COALESCE(revoked_at, ?)
		WHERE id = ?`,
		false, now.UTC(), id,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, now time.Time) error {
	return r.execOne(ctx, `UPDATE sessions SET last_used_at = ? WHERE id = ?`, now.UTC(), id)
}

func (r *sessionsRepo) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, `
		DELETE FROM sessions
		WHERE expires_at < ? OR (is_active = ? AND last_used_at < ?)`,
		cutoff.UTC(), false, cutoff.UTC(),
	)
}
