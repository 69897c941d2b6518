package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
)

type paymentEventsRepo struct {
	queries
}

func (r *paymentEventsRepo) RecordPaymentEvent(ctx context.Context, e domain.PaymentEvent) error {
	_, err := r.exec(ctx, `
		INSERT INTO payment_events (event_id, type, processed_at)
		VALUES (?, ?, ?)`,
		e.EventID, e.Type, e.ProcessedAt.UTC(),
	)
	return err
}
