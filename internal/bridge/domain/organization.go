package domain

import "time"

// Billing frequencies.
const (
	BillingMonthly = "monthly"
	BillingYearly  = "yearly"
)

// Subscription statuses.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Seat statuses.
const (
	SeatActive  = "active"
	SeatPending = "pending"
	SeatRevoked = "revoked"
	SeatExpired = "expired"
)

// Seat roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidSeatRole reports whether role may be assigned to a seat. Ownership is
// held on the organization, never granted through a seat.
func ValidSeatRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

type Organization struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Subscription is an organization's seat pool. SeatsUsed never exceeds
// SeatsTotal and only changes inside a transaction holding the row lock.
type Subscription struct {
	ID               string
	OrgID            string
	PlanType         string
	BillingFrequency string
	SeatsTotal       int
	SeatsUsed        int
	Status           string
	ExternalRef      string // payment processor subscription id
	CustomerRef      string // payment processor customer id
	CurrentPeriodEnd *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available returns the number of unassigned seats.
func (s Subscription) Available() int {
	return s.SeatsTotal - s.SeatsUsed
}

// Seat binds a subject to an organization's subscription.
type Seat struct {
	ID             string
	OrgID          string
	SubjectID      *string
	Email          string
	Role           string
	Status         string
	CreditsGranted int64
	AssignedAt     time.Time
	RevokedAt      *time.Time
	ExpiresAt      *time.Time
}

// PaymentEvent records a processed webhook so redelivery is a no-op.
type PaymentEvent struct {
	EventID     string
	Type        string
	ProcessedAt time.Time
}
