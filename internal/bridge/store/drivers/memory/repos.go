package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
)

type accountsRepo struct{ v view }

func (r *accountsRepo) GetAccount(ctx context.Context, subjectID string) (a domain.Account, err error) {
	err = r.v.run(ctx, func(d *data) error {
		var ok bool
		if a, ok = d.accounts[subjectID]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
	return a, err
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (a domain.Account, err error) {
	err = r.v.run(ctx, func(d *data) error {
		for _, acc := range d.accounts {
			if acc.Email == email {
				a = acc
				return nil
			}
		}
		return store.ErrNotFound
	})
	return a, err
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.accounts[a.SubjectID]; ok {
			return store.ErrAlreadyExists
		}
		for _, acc := range d.accounts {
			if acc.Email == a.Email {
				return store.ErrAlreadyExists
			}
		}
		d.accounts[a.SubjectID] = a
		return nil
	})
}

func (r *accountsRepo) SetEntitlement(ctx context.Context, subjectID, planType string, credits int64, now time.Time) error {
	return r.v.run(ctx, func(d *data) error {
		a, ok := d.accounts[subjectID]
		if !ok {
			return store.ErrNotFound
		}
		if credits < 0 {
			return store.ErrConflict
		}
		a.PlanType, a.Credits, a.UpdatedAt = planType, credits, now
		d.accounts[subjectID] = a
		return nil
	})
}

type organizationsRepo struct{ v view }

func (r *organizationsRepo) CreateOrganization(ctx context.Context, o domain.Organization) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.organizations[o.ID]; ok {
			return store.ErrAlreadyExists
		}
		if _, ok := d.accounts[o.OwnerID]; !ok {
			return store.ErrNotFound
		}
		d.organizations[o.ID] = o
		return nil
	})
}

func (r *organizationsRepo) GetOrganization(ctx context.Context, id string) (o domain.Organization, err error) {
	err = r.v.run(ctx, func(d *data) error {
		var ok bool
		if o, ok = d.organizations[id]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
	return o, err
}

type subscriptionsRepo struct{ v view }

func (r *subscriptionsRepo) CreateSubscription(ctx context.Context, s domain.Subscription) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.organizations[s.OrgID]; !ok {
			return store.ErrNotFound
		}
		for _, existing := range d.subscriptions {
			if existing.ID == s.ID || existing.OrgID == s.OrgID ||
				(s.ExternalRef != "" && existing.ExternalRef == s.ExternalRef) {
				return store.ErrAlreadyExists
			}
		}
		if s.SeatsUsed < 0 || s.SeatsUsed > s.SeatsTotal {
			return store.ErrConflict
		}
		d.subscriptions[s.ID] = s
		return nil
	})
}

func (r *subscriptionsRepo) find(ctx context.Context, match func(domain.Subscription) bool) (s domain.Subscription, err error) {
	err = r.v.run(ctx, func(d *data) error {
		for _, sub := range d.subscriptions {
			if match(sub) {
				s = sub
				return nil
			}
		}
		return store.ErrNotFound
	})
	return s, err
}

func (r *subscriptionsRepo) GetSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error) {
	return r.find(ctx, func(s domain.Subscription) bool { return s.OrgID == orgID })
}

// LockSubscriptionByOrg needs no row lock: a transaction already excludes
// every other writer.
func (r *subscriptionsRepo) LockSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error) {
	return r.GetSubscriptionByOrg(ctx, orgID)
}

func (r *subscriptionsRepo) GetSubscriptionByExternalRef(ctx context.Context, ref string) (domain.Subscription, error) {
	return r.find(ctx, func(s domain.Subscription) bool { return ref != "" && s.ExternalRef == ref })
}

func (r *subscriptionsRepo) update(ctx context.Context, id string, fn func(s *domain.Subscription) error) error {
	return r.v.run(ctx, func(d *data) error {
		s, ok := d.subscriptions[id]
		if !ok {
			return store.ErrNotFound
		}
		if err := fn(&s); err != nil {
			return err
		}
		d.subscriptions[id] = s
		return nil
	})
}

func (r *subscriptionsRepo) UpdateSeatCounts(ctx context.Context, id string, seatsTotal, seatsUsed int, now time.Time) error {
	return r.update(ctx, id, func(s *domain.Subscription) error {
		if seatsTotal < 0 || seatsUsed < 0 || seatsUsed > seatsTotal {
			return store.ErrConflict
		}
		s.SeatsTotal, s.SeatsUsed, s.UpdatedAt = seatsTotal, seatsUsed, now
		return nil
	})
}

func (r *subscriptionsRepo) UpdateSubscriptionStatus(ctx context.Context, id, status string, periodEnd *time.Time, now time.Time) error {
	return r.update(ctx, id, func(s *domain.Subscription) error {
		s.Status, s.CurrentPeriodEnd, s.UpdatedAt = status, periodEnd, now
		return nil
	})
}

func (r *subscriptionsRepo) SetCustomerRef(ctx context.Context, id, customerRef string, now time.Time) error {
	return r.update(ctx, id, func(s *domain.Subscription) error {
		s.CustomerRef, s.UpdatedAt = customerRef, now
		return nil
	})
}

type seatsRepo struct{ v view }

// checkSeat enforces the (org, email) and one-active-seat-per-subject
// uniqueness that the SQL schemas declare.
func checkSeat(d *data, s domain.Seat) error {
	if _, ok := d.organizations[s.OrgID]; !ok {
		return store.ErrNotFound
	}
	for _, other := range d.seats {
		if other.ID == s.ID {
			continue
		}
		if other.OrgID == s.OrgID && other.Email == s.Email {
			return store.ErrAlreadyExists
		}
		if s.Status == domain.SeatActive && other.Status == domain.SeatActive &&
			s.SubjectID != nil && other.SubjectID != nil && *s.SubjectID == *other.SubjectID {
			return store.ErrAlreadyExists
		}
	}
	return nil
}

func (r *seatsRepo) CreateSeat(ctx context.Context, s domain.Seat) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.seats[s.ID]; ok {
			return store.ErrAlreadyExists
		}
		if err := checkSeat(d, s); err != nil {
			return err
		}
		d.seats[s.ID] = s
		return nil
	})
}

func (r *seatsRepo) GetSeat(ctx context.Context, id string) (s domain.Seat, err error) {
	err = r.v.run(ctx, func(d *data) error {
		var ok bool
		if s, ok = d.seats[id]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
	return s, err
}

func (r *seatsRepo) list(ctx context.Context, match func(domain.Seat) bool) (out []domain.Seat, err error) {
	err = r.v.run(ctx, func(d *data) error {
		for _, s := range d.seats {
			if match(s) {
				out = append(out, s)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Seat) int {
		if c := a.AssignedAt.Compare(b.AssignedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, err
}

func (r *seatsRepo) first(ctx context.Context, match func(domain.Seat) bool, newest bool) (domain.Seat, error) {
	seats, err := r.list(ctx, match)
	if err != nil {
		return domain.Seat{}, err
	}
	if len(seats) == 0 {
		return domain.Seat{}, store.ErrNotFound
	}
	if newest {
		return seats[len(seats)-1], nil
	}
	return seats[0], nil
}

func (r *seatsRepo) GetSeatByOrgEmail(ctx context.Context, orgID, email string) (domain.Seat, error) {
	return r.first(ctx, func(s domain.Seat) bool { return s.OrgID == orgID && s.Email == email }, false)
}

func (r *seatsRepo) GetSeatByOrgSubject(ctx context.Context, orgID, subjectID string) (domain.Seat, error) {
	return r.first(ctx, func(s domain.Seat) bool {
		return s.OrgID == orgID && s.SubjectID != nil && *s.SubjectID == subjectID
	}, true)
}

func (r *seatsRepo) GetActiveSeatBySubject(ctx context.Context, subjectID string) (domain.Seat, error) {
	return r.first(ctx, func(s domain.Seat) bool {
		return s.Status == domain.SeatActive && s.SubjectID != nil && *s.SubjectID == subjectID
	}, false)
}

func (r *seatsRepo) ListSeatsByOrg(ctx context.Context, orgID string) ([]domain.Seat, error) {
	return r.list(ctx, func(s domain.Seat) bool { return s.OrgID == orgID })
}

func (r *seatsRepo) ListPendingSeatsByEmail(ctx context.Context, email string) ([]domain.Seat, error) {
	return r.list(ctx, func(s domain.Seat) bool { return s.Status == domain.SeatPending && s.Email == email })
}

func (r *seatsRepo) UpdateSeat(ctx context.Context, s domain.Seat) error {
	return r.v.run(ctx, func(d *data) error {
		existing, ok := d.seats[s.ID]
		if !ok {
			return store.ErrNotFound
		}
		// org and email are immutable
		s.OrgID, s.Email = existing.OrgID, existing.Email
		if err := checkSeat(d, s); err != nil {
			return err
		}
		d.seats[s.ID] = s
		return nil
	})
}

func (r *seatsRepo) ListExpiredActiveSeats(ctx context.Context, now time.Time) ([]domain.Seat, error) {
	seats, err := r.list(ctx, func(s domain.Seat) bool {
		return s.Status == domain.SeatActive && s.ExpiresAt != nil && s.ExpiresAt.Before(now)
	})
	slices.SortStableFunc(seats, func(a, b domain.Seat) int { return a.ExpiresAt.Compare(*b.ExpiresAt) })
	return seats, err
}

type authorizationCodesRepo struct{ v view }

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	return r.v.run(ctx, func(d *data) error {
		for _, existing := range d.codes {
			if existing.ID == c.ID || existing.State == c.State {
				return store.ErrAlreadyExists
			}
		}
		d.codes[c.ID] = c
		return nil
	})
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByState(ctx context.Context, state string) (c domain.AuthorizationCode, err error) {
	err = r.v.run(ctx, func(d *data) error {
		for _, code := range d.codes {
			if code.State == state {
				c = code
				return nil
			}
		}
		return store.ErrNotFound
	})
	return c, err
}

func (r *authorizationCodesRepo) ConfirmAuthorizationCode(ctx context.Context, id, subjectID, codeHash string, now time.Time) error {
	return r.v.run(ctx, func(d *data) error {
		c, ok := d.codes[id]
		if !ok {
			return store.ErrConflict
		}
		if c.SubjectID != nil && *c.SubjectID != subjectID {
			return store.ErrConflict
		}
		for _, other := range d.codes {
			if other.ID != id && other.CodeHash != nil && *other.CodeHash == codeHash {
				return store.ErrAlreadyExists
			}
		}
		c.SubjectID, c.CodeHash, c.ConfirmedAt = &subjectID, &codeHash, &now
		d.codes[id] = c
		return nil
	})
}

func (r *authorizationCodesRepo) DeleteAuthorizationCode(ctx context.Context, id, codeHash string) error {
	return r.v.run(ctx, func(d *data) error {
		c, ok := d.codes[id]
		if !ok || c.CodeHash == nil || *c.CodeHash != codeHash {
			return store.ErrNotFound
		}
		delete(d.codes, id)
		return nil
	})
}

func (r *authorizationCodesRepo) DeleteAuthorizationCodeByID(ctx context.Context, id string) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.codes[id]; !ok {
			return store.ErrNotFound
		}
		delete(d.codes, id)
		return nil
	})
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (n int64, err error) {
	err = r.v.run(ctx, func(d *data) error {
		for id, c := range d.codes {
			if c.Expired(now) {
				delete(d.codes, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type sessionsRepo struct{ v view }

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.sessions[s.ID]; ok {
			return store.ErrAlreadyExists
		}
		if _, ok := d.accounts[s.SubjectID]; !ok {
			return store.ErrNotFound
		}
		d.sessions[s.ID] = s
		return nil
	})
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (s domain.Session, err error) {
	err = r.v.run(ctx, func(d *data) error {
		var ok bool
		if s, ok = d.sessions[id]; !ok {
			return store.ErrNotFound
		}
		return nil
	})
	return s, err
}

func (r *sessionsRepo) GetActiveSession(ctx context.Context, id string, now time.Time) (domain.Session, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !s.Usable(now) {
		return domain.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (r *sessionsRepo) MarkSessionReplaced(ctx context.Context, oldID, successorID string, now time.Time) error {
	return r.v.run(ctx, func(d *data) error {
		s, ok := d.sessions[oldID]
		if !ok || !s.Active {
			return store.ErrConflict
		}
		s.Active, s.ReplacedBy, s.RevokedAt, s.LastUsedAt = false, &successorID, &now, now
		d.sessions[oldID] = s
		return nil
	})
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, now time.Time) error {
	return r.v.run(ctx, func(d *data) error {
		s, ok := d.sessions[id]
		if !ok {
			return store.ErrNotFound
		}
		s.Active = false
		if s.RevokedAt == nil {
			s.RevokedAt = &now
		}
		d.sessions[id] = s
		return nil
	})
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, now time.Time) error {
	return r.v.run(ctx, func(d *data) error {
		s, ok := d.sessions[id]
		if !ok {
			return store.ErrNotFound
		}
		s.LastUsedAt = now
		d.sessions[id] = s
		return nil
	})
}

func (r *sessionsRepo) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (n int64, err error) {
	err = r.v.run(ctx, func(d *data) error {
		for id, s := range d.sessions {
			if s.ExpiresAt.Before(cutoff) || (!s.Active && s.LastUsedAt.Before(cutoff)) {
				delete(d.sessions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type creditsRepo struct{ v view }

func (r *creditsRepo) AppendCreditTransaction(ctx context.Context, t domain.CreditTransaction) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.accounts[t.SubjectID]; !ok {
			return store.ErrNotFound
		}
		for _, existing := range d.credits {
			if existing.ID == t.ID {
				return store.ErrAlreadyExists
			}
		}
		d.credits = append(d.credits, t)
		return nil
	})
}

func (r *creditsRepo) ListCreditTransactions(ctx context.Context, subjectID string, limit int) (out []domain.CreditTransaction, err error) {
	if limit <= 0 {
		limit = 50
	}
	err = r.v.run(ctx, func(d *data) error {
		// Newest first; appends are chronological
		for i := len(d.credits) - 1; i >= 0 && len(out) < limit; i-- {
			if d.credits[i].SubjectID == subjectID {
				out = append(out, d.credits[i])
			}
		}
		return nil
	})
	return out, err
}

type paymentEventsRepo struct{ v view }

func (r *paymentEventsRepo) RecordPaymentEvent(ctx context.Context, e domain.PaymentEvent) error {
	return r.v.run(ctx, func(d *data) error {
		if _, ok := d.events[e.EventID]; ok {
			return store.ErrAlreadyExists
		}
		d.events[e.EventID] = e
		return nil
	})
}
