// Package payment talks to the external payment processor: checkout for
// seat purchases, subscription quantity changes, the billing portal, and the
// signed webhooks the processor sends back.
package payment

import (
	"context"
	"errors"
	"strconv"
)

var (
	// ErrUnavailable means the processor could not be reached or kept
	// failing after retries.
	ErrUnavailable = errors.New("payment: processor unavailable")

	// ErrRejected means the processor refused the request.
	ErrRejected = errors.New("payment: request rejected")

	ErrNotFound = errors.New("payment: not found")
)

// Checkout statuses.
const (
	CheckoutOpen     = "open"
	CheckoutComplete = "complete"
	CheckoutExpired  = "expired"
)

// Metadata keys attached to checkouts and subscriptions so webhooks can be
// routed back to an organization.
const (
	MetaKind     = "kind"
	MetaOrgID    = "org_id"
	MetaOrgName  = "org_name"
	MetaOwnerID  = "owner_id"
	MetaQuantity = "quantity"

	KindSeats = "seats"
)

// CheckoutRequest describes a hosted checkout to open.
type CheckoutRequest struct {
	CustomerRef string
	PriceID     string
	Quantity    int
	Metadata    map[string]string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the processor's handle for a checkout.
type CheckoutSession struct {
	ID       string            `json:"id"`
	URL      string            `json:"url"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Customer is the processor's record of a paying account.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Processor is the subset of the payment processor's API the bridge uses.
type Processor interface {
	CreateOrGetCustomer(ctx context.Context, email string, metadata map[string]string) (Customer, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	RetrieveSession(ctx context.Context, id string) (CheckoutSession, error)
	UpdateSubscriptionQuantity(ctx context.Context, subscriptionRef string, quantity int) error
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)
}

// SeatPurchase is a completed checkout for additional seats.
type SeatPurchase struct {
	EventID         string
	CheckoutID      string
	OrgID           string
	Quantity        int
	SubscriptionRef string
}

// SeatPurchaseFromMetadata extracts a seat purchase from checkout metadata.
// ok is false when the checkout was for something else.
func SeatPurchaseFromMetadata(meta map[string]string) (orgID string, quantity int, ok bool) {
	if meta[MetaKind] != KindSeats {
		return "", 0, false
	}
	q, err := strconv.Atoi(meta[MetaQuantity])
	if err != nil || q <= 0 || meta[MetaOrgID] == "" {
		return "", 0, false
	}
	return meta[MetaOrgID], q, true
}
