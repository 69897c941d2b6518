package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

const subscriptionColumns = `id, org_id, plan_type, billing_frequency, seats_total, seats_used, status,
	external_ref, customer_ref, current_period_end, created_at, updated_at`

type subscriptionsRepo struct {
	queries
}

func scanSubscription(row scanner) (domain.Subscription, error) {
	var (
		s           domain.Subscription
		externalRef sql.NullString
		customerRef sql.NullString
		periodEnd   sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.OrgID,
		&s.PlanType,
		&s.BillingFrequency,
		&s.SeatsTotal,
		&s.SeatsUsed,
		&s.Status,
		&externalRef,
		&customerRef,
		&periodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	s.ExternalRef = mapNullString(externalRef)
	s.CustomerRef = mapNullString(customerRef)
	s.CurrentPeriodEnd = mapNullTimePtr(periodEnd)
	s.CreatedAt, s.UpdatedAt = s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	return s, err
}

func (r *subscriptionsRepo) CreateSubscription(ctx context.Context, s domain.Subscription) error {
	_, err := r.exec(ctx, `
		INSERT INTO organization_subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.OrgID,
		s.PlanType,
		s.BillingFrequency,
		s.SeatsTotal,
		s.SeatsUsed,
		s.Status,
		mapStringNull(s.ExternalRef),
		mapStringNull(s.CustomerRef),
		mapOptionalTime(s.CurrentPeriodEnd),
		s.CreatedAt.UTC(),
		s.UpdatedAt.UTC(),
	)
	return err
}

func (r *subscriptionsRepo) GetSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error) {
	return r.get(ctx, `SELECT `+subscriptionColumns+` FROM organization_subscriptions WHERE org_id = ?`, orgID)
}

func (r *subscriptionsRepo) LockSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error) {
	return r.get(ctx, `SELECT `+subscriptionColumns+` FROM organization_subscriptions WHERE org_id = ?`+r.d.ForUpdate, orgID)
}

func (r *subscriptionsRepo) GetSubscriptionByExternalRef(ctx context.Context, ref string) (domain.Subscription, error) {
	return r.get(ctx, `SELECT `+subscriptionColumns+` FROM organization_subscriptions WHERE external_ref = ?`, ref)
}

func (r *subscriptionsRepo) get(ctx context.Context, query string, args ...any) (domain.Subscription, error) {
	s, err := scanSubscription(r.queryRow(ctx, query, args...))
	if err != nil {
		return domain.Subscription{}, r.scanErr(err)
	}
	return s, nil
}

func (r *subscriptionsRepo) UpdateSeatCounts(ctx context.Context, id string, seatsTotal, seatsUsed int, now time.Time) error {
	return r.execOne(ctx, `
		UPDATE organization_subscriptions SET seats_total = ?, seats_used = ?, updated_at = ?
		WHERE id = ?`,
		seatsTotal, seatsUsed, now.UTC(), id,
	)
}

func (r *subscriptionsRepo) UpdateSubscriptionStatus(ctx context.Context, id, status string, periodEnd *time.Time, now time.Time) error {
	return r.execOne(ctx, `
		UPDATE organization_subscriptions SET status = ?, current_period_end = ?, updated_at = ?
		WHERE id = ?`,
		status, mapOptionalTime(periodEnd), now.UTC(), id,
	)
}

func (r *subscriptionsRepo) SetCustomerRef(ctx context.Context, id, customerRef string, now time.Time) error {
	return r.execOne(ctx, `
		UPDATE organization_subscriptions SET customer_ref = ?, updated_at = ?
		WHERE id = ?`,
		mapStringNull(customerRef), now.UTC(), id,
	)
}
