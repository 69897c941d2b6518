package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

type organizationsRepo struct {
	queries
}

func (r *organizationsRepo) CreateOrganization(ctx context.Context, o domain.Organization) error {
	_, err := r.exec(ctx, `
		INSERT INTO organizations (id, name, owner_id, created_at)
		VALUES (?, ?, ?, ?)`,
		o.ID, o.Name, o.OwnerID, o.CreatedAt.UTC(),
	)
	return err
}

func (r *organizationsRepo) GetOrganization(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.queryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM organizations WHERE id = ?`, id,
	).Scan(&o.ID, &o.Name, &o.OwnerID, &o.CreatedAt)
	if err != nil {
		return domain.Organization{}, r.scanErr(err)
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}
