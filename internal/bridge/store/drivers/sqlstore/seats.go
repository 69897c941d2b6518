package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

const seatColumns = `id, org_id, subject_id, email, role, status, credits_granted, assigned_at, revoked_at, expires_at`

type seatsRepo struct {
	queries
}

func scanSeat(row scanner) (domain.Seat, error) {
	var (
		s         domain.Seat
		subjectID sql.NullString
		revokedAt sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.OrgID,
		&subjectID,
		&s.Email,
		&s.Role,
		&s.Status,
		&s.CreditsGranted,
		&s.AssignedAt,
		&revokedAt,
		&expiresAt,
	)
	s.SubjectID = mapNullStringPtr(subjectID)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	s.ExpiresAt = mapNullTimePtr(expiresAt)
	s.AssignedAt = s.AssignedAt.UTC()
	return s, err
}

func (r *seatsRepo) CreateSeat(ctx context.Context, s domain.Seat) error {
	_, err := r.exec(ctx, `
		INSERT INTO organization_seats (`+seatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.OrgID,
		mapOptionalString(s.SubjectID),
		s.Email,
		s.Role,
		s.Status,
		s.CreditsGranted,
		s.AssignedAt.UTC(),
		mapOptionalTime(s.RevokedAt),
		mapOptionalTime(s.ExpiresAt),
	)
	return err
}

func (r *seatsRepo) GetSeat(ctx context.Context, id string) (domain.Seat, error) {
	return r.get(ctx, `SELECT `+seatColumns+` FROM organization_seats WHERE id = ?`, id)
}

func (r *seatsRepo) GetSeatByOrgEmail(ctx context.Context, orgID, email string) (domain.Seat, error) {
	return r.get(ctx, `SELECT `+seatColumns+` FROM organization_seats WHERE org_id = ? AND email = ?`, orgID, email)
}

func (r *seatsRepo) GetSeatByOrgSubject(ctx context.Context, orgID, subjectID string) (domain.Seat, error) {
	return r.get(ctx, `
		SELECT `+seatColumns+` FROM organization_seats
		WHERE org_id = ? AND subject_id = ?
		ORDER BY assigned_at DESC LIMIT 1`, orgID, subjectID)
}

func (r *seatsRepo) GetActiveSeatBySubject(ctx context.Context, subjectID string) (domain.Seat, error) {
	return r.get(ctx, `
		SELECT `+seatColumns+` FROM organization_seats
		WHERE subject_id = ? AND status = ?`, subjectID, domain.SeatActive)
}

func (r *seatsRepo) get(ctx context.Context, query string, args ...any) (domain.Seat, error) {
	s, err := scanSeat(r.queryRow(ctx, query, args...))
	if err != nil {
		return domain.Seat{}, r.scanErr(err)
	}
	return s, nil
}

func (r *seatsRepo) ListSeatsByOrg(ctx context.Context, orgID string) ([]domain.Seat, error) {
	rows, err := r.query(ctx, `
		SELECT `+seatColumns+` FROM organization_seats
		WHERE org_id = ?
		ORDER BY assigned_at, id`, orgID)
	if err != nil {
		return nil, err
	}
	return collect(r.queries, rows, scanSeat)
}

func (r *seatsRepo) ListPendingSeatsByEmail(ctx context.Context, email string) ([]domain.Seat, error) {
	rows, err := r.query(ctx, `
		SELECT `+seatColumns+` FROM organization_seats
		WHERE email = ? AND status = ?
		ORDER BY assigned_at, id`, email, domain.SeatPending)
	if err != nil {
		return nil, err
	}
	return collect(r.queries, rows, scanSeat)
}

func (r *seatsRepo) UpdateSeat(ctx context.Context, s domain.Seat) error {
	return r.execOne(ctx, `
		UPDATE organization_seats SET
			subject_id = ?,
			role = ?,
			status = ?,
			credits_granted = ?,
			assigned_at = ?,
			revoked_at = ?,
			expires_at = ?
		WHERE id = ?`,
		mapOptionalString(s.SubjectID),
		s.Role,
		s.Status,
		s.CreditsGranted,
		s.AssignedAt.UTC(),
		mapOptionalTime(s.RevokedAt),
		mapOptionalTime(s.ExpiresAt),
		s.ID,
	)
}

func (r *seatsRepo) ListExpiredActiveSeats(ctx context.Context, now time.Time) ([]domain.Seat, error) {
	rows, err := r.query(ctx, `
		SELECT `+seatColumns+` FROM organization_seats
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
		ORDER BY expires_at, id`, domain.SeatActive, now.UTC())
	if err != nil {
		return nil, err
	}
	return collect(r.queries, rows, scanSeat)
}
