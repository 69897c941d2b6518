package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/obs"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/plans"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/idx"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

// MaxSeatPurchase caps a single seat checkout.
const MaxSeatPurchase = 1000

// SeatPrices maps billing frequency to the processor's per-seat price id.
type SeatPrices map[string]string

// EntitlementService assigns and revokes organization seats. Every seat
// mutation runs in one transaction that starts by locking the organization's
// subscription row, so capacity checks and counter updates for one
// organization never interleave.
type EntitlementService struct {
	Store    store.Store
	Catalog  *plans.Catalog
	Payments payment.Processor
	Prices   SeatPrices

	// BaseURL is where checkout and portal sessions return to.
	BaseURL string

	Now func() time.Time
}

// SeatRoster is an organization's seat pool and its seats.
type SeatRoster struct {
	Subscription domain.Subscription
	Seats        []domain.Seat
}

func (s *EntitlementService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// AssignSeat gives the account registered under email an active seat in
// orgID and replaces its balance with the plan's seat grant. An email with no
// account yet gets a pending seat, activated by ClaimPendingSeat when that
// account registers.
func (s *EntitlementService) AssignSeat(ctx context.Context, orgID, actorID, email, role string) (domain.Seat, error) {
	seat, err := s.assignSeat(ctx, orgID, actorID, email, role)
	obs.SeatOp("assign", outcome(err))
	return seat, upstream(err)
}

func (s *EntitlementService) assignSeat(ctx context.Context, orgID, actorID, email, role string) (domain.Seat, error) {
	l := slogx.FromContext(ctx)

	email = normalizeEmail(email)
	if email == "" {
		return domain.Seat{}, ErrInvalidRequest
	}
	if !domain.ValidSeatRole(role) {
		return domain.Seat{}, ErrInvalidRole
	}

	var (
		seat     domain.Seat
		previous int64
	)
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		sub, err := lockActiveSubscription(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if err := authorizeSeatAdmin(ctx, tx, orgID, actorID); err != nil {
			return err
		}

		account, err := tx.Accounts().GetAccountByEmail(ctx, email)
		switch {
		case errors.Is(err, store.ErrNotFound):
			seat, err = s.inviteSeat(ctx, tx, sub, email, role, now)
			return err
		case err != nil:
			return err
		}

		switch _, err := tx.Seats().GetActiveSeatBySubject(ctx, account.SubjectID); {
		case err == nil:
			return ErrAlreadyAssigned
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		if sub.Available() <= 0 {
			return ErrNoCapacity
		}

		credits, err := s.Catalog.SeatCredits(sub.PlanType, sub.BillingFrequency)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotSeatPlan, err)
		}

		subjectID := account.SubjectID
		existing, err := tx.Seats().GetSeatByOrgEmail(ctx, orgID, email)
		switch {
		case err == nil:
			// Reactivate a pending, revoked or expired seat in place
			seat = existing
			seat.SubjectID = &subjectID
			seat.Role = role
			seat.Status = domain.SeatActive
			seat.CreditsGranted = credits
			seat.AssignedAt = now
			seat.RevokedAt = nil
			seat.ExpiresAt = nil
			if err := tx.Seats().UpdateSeat(ctx, seat); err != nil {
				return seatConflict(err)
			}
		case errors.Is(err, store.ErrNotFound):
			seat = domain.Seat{
				ID:             idx.NewAt(now).String(),
				OrgID:          orgID,
				SubjectID:      &subjectID,
				Email:          email,
				Role:           role,
				Status:         domain.SeatActive,
				CreditsGranted: credits,
				AssignedAt:     now,
			}
			if err := tx.Seats().CreateSeat(ctx, seat); err != nil {
				return seatConflict(err)
			}
		default:
			return err
		}

		previous = account.Credits
		if err := tx.Accounts().SetEntitlement(ctx, subjectID, sub.PlanType, credits, now); err != nil {
			return err
		}
		return tx.Subscriptions().UpdateSeatCounts(ctx, sub.ID, sub.SeatsTotal, sub.SeatsUsed+1, now)
	})
	if err != nil {
		return domain.Seat{}, err
	}

	if seat.Status == domain.SeatPending {
		l.Info("seat invitation pending registration",
			slog.String("org_id", orgID),
			slog.String("seat_id", seat.ID),
		)
		return seat, nil
	}

	l.Info("seat assigned",
		slog.String("org_id", orgID),
		slog.String("seat_id", seat.ID),
		slog.String("subject_id", *seat.SubjectID),
		slog.Int64("credits", seat.CreditsGranted),
	)
	s.recordCredits(ctx, *seat.SubjectID, &seat, seat.CreditsGranted-previous, seat.CreditsGranted, domain.CreditReasonSeatGrant, now)
	return seat, nil
}

// inviteSeat reserves a pending seat for an email nobody has registered.
// Pending seats grant nothing and are not counted in seats_used, but an
// organization with no free seat cannot invite.
func (s *EntitlementService) inviteSeat(ctx context.Context, tx store.Tx, sub domain.Subscription, email, role string, now time.Time) (domain.Seat, error) {
	if sub.Available() <= 0 {
		return domain.Seat{}, ErrNoCapacity
	}
	if _, err := s.Catalog.SeatCredits(sub.PlanType, sub.BillingFrequency); err != nil {
		return domain.Seat{}, fmt.Errorf("%w: %w", ErrNotSeatPlan, err)
	}

	existing, err := tx.Seats().GetSeatByOrgEmail(ctx, sub.OrgID, email)
	switch {
	case err == nil:
		if existing.Status == domain.SeatPending || existing.Status == domain.SeatActive {
			return domain.Seat{}, ErrAlreadyAssigned
		}
		seat := existing
		seat.SubjectID = nil
		seat.Role = role
		seat.Status = domain.SeatPending
		seat.CreditsGranted = 0
		seat.AssignedAt = now
		seat.RevokedAt = nil
		seat.ExpiresAt = nil
		return seat, seatConflict(tx.Seats().UpdateSeat(ctx, seat))
	case errors.Is(err, store.ErrNotFound):
		seat := domain.Seat{
			ID:         idx.NewAt(now).String(),
			OrgID:      sub.OrgID,
			Email:      email,
			Role:       role,
			Status:     domain.SeatPending,
			AssignedAt: now,
		}
		return seat, seatConflict(tx.Seats().CreateSeat(ctx, seat))
	default:
		return domain.Seat{}, err
	}
}

// ClaimPendingSeat activates the oldest invitation waiting for the account's
// email. Invitations whose organization is full or lapsed stay pending. It
// reports whether a seat was activated.
func (s *EntitlementService) ClaimPendingSeat(ctx context.Context, subjectID string) (domain.Seat, bool, error) {
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccount(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Seat{}, false, ErrAccountNotFound
		}
		return domain.Seat{}, false, upstream(err)
	}
	invites, err := s.Store.Seats().ListPendingSeatsByEmail(ctx, account.Email)
	if err != nil {
		return domain.Seat{}, false, upstream(err)
	}

	for _, invite := range invites {
		now := s.now()
		seat, previous, err := s.claimSeat(ctx, invite.ID, subjectID, now)
		switch {
		case err == nil:
			obs.SeatOp("claim", "ok")
			l.Info("pending seat claimed",
				slog.String("org_id", seat.OrgID),
				slog.String("seat_id", seat.ID),
				slog.String("subject_id", subjectID),
				slog.Int64("credits", seat.CreditsGranted),
			)
			s.recordCredits(ctx, subjectID, &seat, seat.CreditsGranted-previous, seat.CreditsGranted, domain.CreditReasonSeatGrant, now)
			return seat, true, nil
		case errors.Is(err, ErrAlreadyAssigned):
			return domain.Seat{}, false, nil
		case errors.Is(err, ErrNoCapacity), errors.Is(err, ErrNoSubscription),
			errors.Is(err, ErrSeatNotFound), errors.Is(err, ErrNotSeatPlan):
			obs.SeatOp("claim", outcome(err))
			l.Info("pending seat left pending",
				slog.String("org_id", invite.OrgID),
				slog.String("seat_id", invite.ID),
				slog.Any("reason", err),
			)
		default:
			obs.SeatOp("claim", outcome(err))
			return domain.Seat{}, false, upstream(err)
		}
	}
	return domain.Seat{}, false, nil
}

func (s *EntitlementService) claimSeat(ctx context.Context, seatID, subjectID string, now time.Time) (domain.Seat, int64, error) {
	var (
		seat     domain.Seat
		previous int64
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		invite, err := tx.Seats().GetSeat(ctx, seatID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSeatNotFound
			}
			return err
		}
		sub, err := lockActiveSubscription(ctx, tx, invite.OrgID)
		if err != nil {
			return err
		}

		// Re-read under the lock; a concurrent revoke or claim may have won
		if seat, err = tx.Seats().GetSeat(ctx, seatID); err != nil {
			return err
		}
		if seat.Status != domain.SeatPending {
			return ErrSeatNotFound
		}

		switch _, err := tx.Seats().GetActiveSeatBySubject(ctx, subjectID); {
		case err == nil:
			return ErrAlreadyAssigned
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if sub.Available() <= 0 {
			return ErrNoCapacity
		}
		credits, err := s.Catalog.SeatCredits(sub.PlanType, sub.BillingFrequency)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotSeatPlan, err)
		}

		account, err := tx.Accounts().GetAccount(ctx, subjectID)
		if err != nil {
			return err
		}
		previous = account.Credits

		seat.SubjectID = &subjectID
		seat.Status = domain.SeatActive
		seat.CreditsGranted = credits
		seat.AssignedAt = now
		if err := tx.Seats().UpdateSeat(ctx, seat); err != nil {
			return seatConflict(err)
		}
		if err := tx.Accounts().SetEntitlement(ctx, subjectID, sub.PlanType, credits, now); err != nil {
			return err
		}
		return tx.Subscriptions().UpdateSeatCounts(ctx, sub.ID, sub.SeatsTotal, sub.SeatsUsed+1, now)
	})
	return seat, previous, err
}

// seatConflict reports a unique seat index violation as ErrAlreadyAssigned.
// Two organizations seating the same subject hold different locks, so the
// active-subject index is the final arbiter.
func seatConflict(err error) error {
	if errors.Is(err, store.ErrAlreadyExists) {
		return errors.Join(ErrAlreadyAssigned, err)
	}
	return err
}

// RevokeSeat ends subjectID's active seat in orgID and resets the account to
// its personal plan baseline.
func (s *EntitlementService) RevokeSeat(ctx context.Context, orgID, actorID, subjectID string) error {
	err := s.endSeat(ctx, orgID, subjectID, domain.SeatRevoked, func(tx store.Tx) error {
		return authorizeSeatAdmin(ctx, tx, orgID, actorID)
	})
	obs.SeatOp("revoke", outcome(err))
	return upstream(err)
}

// endSeat moves the subject's active seat to status and restores the
// personal baseline. authorize runs after the subscription lock is held.
func (s *EntitlementService) endSeat(ctx context.Context, orgID, subjectID, status string, authorize func(tx store.Tx) error) error {
	l := slogx.FromContext(ctx)

	if subjectID == "" {
		return ErrSeatNotFound
	}

	var (
		seat     domain.Seat
		previous int64
		baseline int64
	)
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.Subscriptions().LockSubscriptionByOrg(ctx, orgID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoSubscription
			}
			return err
		}
		if authorize != nil {
			if err := authorize(tx); err != nil {
				return err
			}
		}

		seat, err = tx.Seats().GetSeatByOrgSubject(ctx, orgID, subjectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSeatNotFound
			}
			return err
		}
		if seat.Status != domain.SeatActive {
			return ErrSeatNotFound
		}

		seat.Status = status
		seat.RevokedAt = &now
		if err := tx.Seats().UpdateSeat(ctx, seat); err != nil {
			return err
		}

		account, err := tx.Accounts().GetAccount(ctx, subjectID)
		if err != nil {
			return err
		}
		plan, credits := s.Catalog.Baseline(account.PersonalPlan)
		previous, baseline = account.Credits, credits
		if err := tx.Accounts().SetEntitlement(ctx, subjectID, plan, credits, now); err != nil {
			return err
		}

		used := max(sub.SeatsUsed-1, 0)
		return tx.Subscriptions().UpdateSeatCounts(ctx, sub.ID, sub.SeatsTotal, used, now)
	})
	if err != nil {
		return err
	}

	l.Info("seat ended",
		slog.String("org_id", orgID),
		slog.String("seat_id", seat.ID),
		slog.String("subject_id", subjectID),
		slog.String("status", status),
	)
	reason := domain.CreditReasonSeatRevoke
	if status == domain.SeatExpired {
		reason = domain.CreditReasonSeatExpire
	}
	s.recordCredits(ctx, subjectID, &seat, baseline-previous, baseline, reason, now)
	return nil
}

// ListSeats returns the organization's pool. Only the owner and seat admins
// may read it.
func (s *EntitlementService) ListSeats(ctx context.Context, orgID, actorID string) (SeatRoster, error) {
	sub, err := s.Store.Subscriptions().GetSubscriptionByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SeatRoster{}, ErrNoSubscription
		}
		return SeatRoster{}, upstream(err)
	}
	if err := authorizeSeatAdmin(ctx, s.Store, orgID, actorID); err != nil {
		return SeatRoster{}, upstream(err)
	}

	seats, err := s.Store.Seats().ListSeatsByOrg(ctx, orgID)
	if err != nil {
		return SeatRoster{}, upstream(err)
	}
	return SeatRoster{Subscription: sub, Seats: seats}, nil
}

// BuySeats opens a checkout for quantity more seats. seats_total only grows
// once the processor confirms payment.
func (s *EntitlementService) BuySeats(ctx context.Context, orgID, actorID string, quantity int) (payment.CheckoutSession, error) {
	cs, err := s.buySeats(ctx, orgID, actorID, quantity)
	obs.SeatOp("purchase", outcome(err))
	return cs, upstream(err)
}

func (s *EntitlementService) buySeats(ctx context.Context, orgID, actorID string, quantity int) (payment.CheckoutSession, error) {
	l := slogx.FromContext(ctx)

	if quantity <= 0 || quantity > MaxSeatPurchase {
		return payment.CheckoutSession{}, ErrInvalidQuantity
	}

	sub, err := s.Store.Subscriptions().GetSubscriptionByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return payment.CheckoutSession{}, ErrNoSubscription
		}
		return payment.CheckoutSession{}, err
	}
	if sub.Status != domain.SubscriptionActive {
		return payment.CheckoutSession{}, ErrNoSubscription
	}
	if err := authorizeSeatAdmin(ctx, s.Store, orgID, actorID); err != nil {
		return payment.CheckoutSession{}, err
	}

	price, ok := s.Prices[sub.BillingFrequency]
	if !ok || price == "" {
		l.Error("no seat price configured", slog.String("billing_frequency", sub.BillingFrequency))
		return payment.CheckoutSession{}, ErrNotSeatPlan
	}

	customerRef, err := s.customerRef(ctx, sub)
	if err != nil {
		return payment.CheckoutSession{}, err
	}

	cs, err := s.Payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		CustomerRef: customerRef,
		PriceID:     price,
		Quantity:    quantity,
		Metadata: map[string]string{
			payment.MetaKind:     payment.KindSeats,
			payment.MetaOrgID:    orgID,
			payment.MetaQuantity: strconv.Itoa(quantity),
		},
		SuccessURL: s.BaseURL + "/org/" + orgID + "/seats?checkout=success",
		CancelURL:  s.BaseURL + "/org/" + orgID + "/seats?checkout=cancel",
	})
	if err != nil {
		return payment.CheckoutSession{}, paymentError(err)
	}

	l.Info("seat checkout opened",
		slog.String("org_id", orgID),
		slog.String("checkout_id", cs.ID),
		slog.Int("quantity", quantity),
	)
	return cs, nil
}

// PortalURL opens a billing portal session for the organization's customer.
func (s *EntitlementService) PortalURL(ctx context.Context, orgID, actorID string) (string, error) {
	sub, err := s.Store.Subscriptions().GetSubscriptionByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNoSubscription
		}
		return "", upstream(err)
	}
	if err := authorizeOwner(ctx, s.Store, orgID, actorID); err != nil {
		return "", upstream(err)
	}

	customerRef, err := s.customerRef(ctx, sub)
	if err != nil {
		return "", upstream(err)
	}
	u, err := s.Payments.CreatePortalSession(ctx, customerRef, s.BaseURL+"/org/"+orgID+"/seats")
	if err != nil {
		return "", upstream(paymentError(err))
	}
	return u, nil
}

// customerRef returns the subscription's processor customer, creating it
// from the owner's email on first use.
func (s *EntitlementService) customerRef(ctx context.Context, sub domain.Subscription) (string, error) {
	if sub.CustomerRef != "" {
		return sub.CustomerRef, nil
	}

	org, err := s.Store.Organizations().GetOrganization(ctx, sub.OrgID)
	if err != nil {
		return "", err
	}
	owner, err := s.Store.Accounts().GetAccount(ctx, org.OwnerID)
	if err != nil {
		return "", err
	}

	c, err := s.Payments.CreateOrGetCustomer(ctx, owner.Email, map[string]string{
		payment.MetaOrgID:   org.ID,
		payment.MetaOwnerID: owner.SubjectID,
	})
	if err != nil {
		return "", paymentError(err)
	}
	if err := s.Store.Subscriptions().SetCustomerRef(ctx, sub.ID, c.ID, s.now()); err != nil {
		return "", err
	}
	return c.ID, nil
}

// ApplySeatPurchase grows seats_total by a confirmed purchase. Each event id
// is applied at most once.
func (s *EntitlementService) ApplySeatPurchase(ctx context.Context, p payment.SeatPurchase) error {
	l := slogx.FromContext(ctx)

	if p.EventID == "" || p.OrgID == "" || p.Quantity <= 0 {
		return ErrInvalidRequest
	}

	var (
		sub       domain.Subscription
		duplicate bool
	)
	now := s.now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.PaymentEvents().RecordPaymentEvent(ctx, domain.PaymentEvent{
			EventID:     p.EventID,
			Type:        payment.EventCheckoutCompleted,
			ProcessedAt: now,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			duplicate = true
			return nil
		}
		if err != nil {
			return err
		}

		sub, err = tx.Subscriptions().LockSubscriptionByOrg(ctx, p.OrgID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoSubscription
			}
			return err
		}
		sub.SeatsTotal += p.Quantity
		return tx.Subscriptions().UpdateSeatCounts(ctx, sub.ID, sub.SeatsTotal, sub.SeatsUsed, now)
	})
	obs.SeatOp("apply_purchase", outcome(err))
	if err != nil {
		return upstream(err)
	}
	if duplicate {
		l.Info("seat purchase already applied", slog.String("event_id", p.EventID))
		return nil
	}

	l.Info("seat purchase applied",
		slog.String("org_id", p.OrgID),
		slog.Int("quantity", p.Quantity),
		slog.Int("seats_total", sub.SeatsTotal),
	)

	// Seats bought through a one-off checkout are folded into the recurring
	// subscription so the next invoice covers them.
	if sub.ExternalRef != "" && p.SubscriptionRef != sub.ExternalRef {
		if err := s.Payments.UpdateSubscriptionQuantity(ctx, sub.ExternalRef, sub.SeatsTotal); err != nil {
			l.Error("failed to sync subscription quantity",
				slog.String("subscription_ref", sub.ExternalRef),
				slog.Any("err", err),
			)
		}
	}
	return nil
}

// ProvisionSubscription creates the organization and its seat subscription
// for a subscription.created event. Organization name and owner come from
// the checkout metadata.
func (s *EntitlementService) ProvisionSubscription(ctx context.Context, eventID string, ev payment.SubscriptionChanged) error {
	l := slogx.FromContext(ctx)

	ownerID := ev.Metadata[payment.MetaOwnerID]
	if ownerID == "" {
		return fmt.Errorf("%w: subscription has no owner", ErrInvalidRequest)
	}
	if !s.Catalog.IsSeatPlan(ev.PlanType) {
		return fmt.Errorf("%w: %s", ErrNotSeatPlan, ev.PlanType)
	}
	if !s.Catalog.ValidFrequency(ev.BillingFrequency) {
		return fmt.Errorf("%w: billing frequency %q", ErrInvalidRequest, ev.BillingFrequency)
	}
	if ev.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	orgID := ev.Metadata[payment.MetaOrgID]
	if orgID == "" {
		orgID = idx.NewAt(s.now()).String()
	}
	name := ev.Metadata[payment.MetaOrgName]
	if name == "" {
		name = orgID
	}

	status := ev.Status
	if status == "" {
		status = domain.SubscriptionActive
	}

	now := s.now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.PaymentEvents().RecordPaymentEvent(ctx, domain.PaymentEvent{
			EventID:     eventID,
			Type:        payment.EventSubscriptionCreated,
			ProcessedAt: now,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.Accounts().GetAccount(ctx, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		switch _, err := tx.Organizations().GetOrganization(ctx, orgID); {
		case errors.Is(err, store.ErrNotFound):
			err = tx.Organizations().CreateOrganization(ctx, domain.Organization{
				ID:        orgID,
				Name:      name,
				OwnerID:   ownerID,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		err = tx.Subscriptions().CreateSubscription(ctx, domain.Subscription{
			ID:               idx.NewAt(now).String(),
			OrgID:            orgID,
			PlanType:         ev.PlanType,
			BillingFrequency: ev.BillingFrequency,
			SeatsTotal:       ev.Quantity,
			Status:           status,
			ExternalRef:      ev.SubscriptionRef,
			CustomerRef:      ev.CustomerRef,
			CurrentPeriodEnd: ev.CurrentPeriodEnd,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			// Redelivered under a new event id
			return nil
		}
		return err
	})
	obs.SeatOp("provision", outcome(err))
	if err != nil {
		return upstream(err)
	}

	l.Info("organization subscription provisioned",
		slog.String("org_id", orgID),
		slog.String("plan_type", ev.PlanType),
		slog.Int("seats_total", ev.Quantity),
	)
	return nil
}

// SyncSubscription applies a subscription.updated or subscription.canceled
// event. seats_total follows the processor's quantity but never drops below
// the seats in use; admins revoke seats before reducing the plan.
func (s *EntitlementService) SyncSubscription(ctx context.Context, eventID, eventType string, ev payment.SubscriptionChanged) error {
	l := slogx.FromContext(ctx)

	now := s.now()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.PaymentEvents().RecordPaymentEvent(ctx, domain.PaymentEvent{
			EventID:     eventID,
			Type:        eventType,
			ProcessedAt: now,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		if err != nil {
			return err
		}

		found, err := tx.Subscriptions().GetSubscriptionByExternalRef(ctx, ev.SubscriptionRef)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNoSubscription
			}
			return err
		}
		sub, err := tx.Subscriptions().LockSubscriptionByOrg(ctx, found.OrgID)
		if err != nil {
			return err
		}

		status := ev.Status
		if eventType == payment.EventSubscriptionCanceled {
			status = domain.SubscriptionCanceled
		}
		if status == "" {
			status = sub.Status
		}
		if err := tx.Subscriptions().UpdateSubscriptionStatus(ctx, sub.ID, status, ev.CurrentPeriodEnd, now); err != nil {
			return err
		}
		if status == domain.SubscriptionCanceled {
			return scheduleSeatExpiry(ctx, tx, sub.OrgID, ev.CurrentPeriodEnd, now)
		}

		if ev.Quantity > 0 && ev.Quantity != sub.SeatsTotal {
			total := ev.Quantity
			if total < sub.SeatsUsed {
				l.Warn("processor quantity below seats in use, keeping seats",
					slog.String("org_id", sub.OrgID),
					slog.Int("quantity", ev.Quantity),
					slog.Int("seats_used", sub.SeatsUsed),
				)
				total = sub.SeatsUsed
			}
			return tx.Subscriptions().UpdateSeatCounts(ctx, sub.ID, total, sub.SeatsUsed, now)
		}
		return nil
	})
	obs.SeatOp("sync", outcome(err))
	return upstream(err)
}

// HandleEvent dispatches a verified webhook event.
func (s *EntitlementService) HandleEvent(ctx context.Context, ev payment.Event) error {
	l := slogx.FromContext(ctx).With(slog.String("event_id", ev.ID), slog.String("event_type", ev.Type))
	ctx = slogx.WithContext(ctx, l)

	var err error
	switch ev.Type {
	case payment.EventCheckoutCompleted:
		var c payment.CheckoutCompleted
		if c, err = ev.Checkout(); err != nil {
			break
		}
		orgID, qty, ok := payment.SeatPurchaseFromMetadata(c.Metadata)
		if !ok {
			l.Info("ignoring checkout that is not a seat purchase")
			break
		}
		err = s.ApplySeatPurchase(ctx, payment.SeatPurchase{
			EventID:         ev.ID,
			CheckoutID:      c.SessionID,
			OrgID:           orgID,
			Quantity:        qty,
			SubscriptionRef: c.SubscriptionRef,
		})

	case payment.EventSubscriptionCreated:
		var sc payment.SubscriptionChanged
		if sc, err = ev.Subscription(); err != nil {
			break
		}
		err = s.ProvisionSubscription(ctx, ev.ID, sc)

	case payment.EventSubscriptionUpdated, payment.EventSubscriptionCanceled:
		var sc payment.SubscriptionChanged
		if sc, err = ev.Subscription(); err != nil {
			break
		}
		err = s.SyncSubscription(ctx, ev.ID, ev.Type, sc)

	default:
		l.Info("ignoring unhandled webhook event")
		obs.WebhookEvent(ev.Type, "ignored")
		return nil
	}

	if errors.Is(err, payment.ErrInvalidEvent) {
		err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	obs.WebhookEvent(ev.Type, outcome(err))
	return err
}

// ExpireSeats ends every active seat whose expiry has passed. It returns
// how many seats were expired.
func (s *EntitlementService) ExpireSeats(ctx context.Context) (int, error) {
	l := slogx.FromContext(ctx)

	seats, err := s.Store.Seats().ListExpiredActiveSeats(ctx, s.now())
	if err != nil {
		return 0, err
	}

	n := 0
	for _, seat := range seats {
		if seat.SubjectID == nil {
			continue
		}
		err := s.endSeat(ctx, seat.OrgID, *seat.SubjectID, domain.SeatExpired, nil)
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrSeatNotFound):
			// Revoked concurrently
		default:
			l.Error("failed to expire seat", slog.String("seat_id", seat.ID), slog.Any("err", err))
		}
	}
	return n, nil
}

// recordCredits appends a ledger row. The balance already committed is the
// source of truth, so failures are only logged.
func (s *EntitlementService) recordCredits(ctx context.Context, subjectID string, seat *domain.Seat, delta, balance int64, reason string, now time.Time) {
	t := domain.CreditTransaction{
		ID:           idx.NewAt(now).String(),
		SubjectID:    subjectID,
		Delta:        delta,
		BalanceAfter: balance,
		Reason:       reason,
		CreatedAt:    now,
	}
	if seat != nil {
		t.OrgID, t.SeatID = &seat.OrgID, &seat.ID
	}
	if err := s.Store.Credits().AppendCreditTransaction(ctx, t); err != nil {
		slogx.FromContext(ctx).Error("failed to append credit transaction",
			slog.String("subject_id", subjectID),
			slog.String("reason", reason),
			slog.Any("err", err),
		)
	}
}

// scheduleSeatExpiry stamps every active seat of a canceled subscription
// with the end of the paid period. Housekeeping expires them once it passes.
func scheduleSeatExpiry(ctx context.Context, tx store.Tx, orgID string, periodEnd *time.Time, now time.Time) error {
	at := now
	if periodEnd != nil && periodEnd.After(now) {
		at = periodEnd.UTC()
	}

	seats, err := tx.Seats().ListSeatsByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	for _, seat := range seats {
		if seat.Status != domain.SeatActive || seat.ExpiresAt != nil {
			continue
		}
		seat.ExpiresAt = &at
		if err := tx.Seats().UpdateSeat(ctx, seat); err != nil {
			return err
		}
	}
	return nil
}

func lockActiveSubscription(ctx context.Context, tx store.Tx, orgID string) (domain.Subscription, error) {
	sub, err := tx.Subscriptions().LockSubscriptionByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Subscription{}, ErrNoSubscription
		}
		return domain.Subscription{}, err
	}
	if sub.Status != domain.SubscriptionActive {
		return domain.Subscription{}, ErrNoSubscription
	}
	return sub, nil
}

// authorizeSeatAdmin lets the organization owner and active admin seats
// manage seats. Unknown organizations look the same as foreign ones.
func authorizeSeatAdmin(ctx context.Context, st store.Store, orgID, actorID string) error {
	if actorID == "" {
		return ErrForbidden
	}
	org, err := st.Organizations().GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if org.OwnerID == actorID {
		return nil
	}

	seat, err := st.Seats().GetSeatByOrgSubject(ctx, orgID, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if seat.Status != domain.SeatActive || seat.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func authorizeOwner(ctx context.Context, st store.Store, orgID, actorID string) error {
	org, err := st.Organizations().GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if actorID == "" || org.OwnerID != actorID {
		return ErrForbidden
	}
	return nil
}

func paymentError(err error) error {
	if errors.Is(err, payment.ErrRejected) || errors.Is(err, payment.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
