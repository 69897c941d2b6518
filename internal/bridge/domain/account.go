package domain

import "time"

// Plan types. Personal plans are what an account falls back to when it
// loses an organization seat.
const (
	PlanStarter = "starter"
	PlanPro     = "pro"
	PlanTeams   = "teams"
)

// Account is a subject known to the bridge, created through the primary
// signup path.
type Account struct {
	SubjectID    string
	Email        string
	DisplayName  string
	PersonalPlan string // plan to restore when an org seat ends
	PlanType     string // effective plan
	Credits      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreditTransaction is an append-only ledger row. Writing one is a
// secondary effect; the account balance is the source of truth.
type CreditTransaction struct {
	ID           string
	SubjectID    string
	OrgID        *string
	SeatID       *string
	Delta        int64
	BalanceAfter int64
	Reason       string
	CreatedAt    time.Time
}

// Ledger reasons.
const (
	CreditReasonSignup     = "signup"
	CreditReasonSeatGrant  = "seat_grant"
	CreditReasonSeatRevoke = "seat_revoke"
	CreditReasonSeatExpire = "seat_expire"
)
