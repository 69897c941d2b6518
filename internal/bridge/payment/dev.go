package payment

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/aussiebroadwan/seatbridge/pkg/idx"
)

// CompletionHook is invoked when a development checkout completes.
type CompletionHook func(ctx context.Context, purchase SeatPurchase) error

// DevProcessor completes every checkout immediately and in memory. It lets
// the seat purchase path run end to end without a processor account.
type DevProcessor struct {
	mu        sync.Mutex
	customers map[string]Customer // by email
	sessions  map[string]CheckoutSession
	onDone    CompletionHook
	baseURL   string
}

// NewDevProcessor returns a processor whose checkout and portal URLs point
// at baseURL.
func NewDevProcessor(baseURL string) *DevProcessor {
	return &DevProcessor{
		customers: make(map[string]Customer),
		sessions:  make(map[string]CheckoutSession),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// OnCompleted registers the hook run for each completed seat checkout.
func (p *DevProcessor) OnCompleted(hook CompletionHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDone = hook
}

func (p *DevProcessor) CreateOrGetCustomer(_ context.Context, email string, _ map[string]string) (Customer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	email = strings.ToLower(email)
	if c, ok := p.customers[email]; ok {
		return c, nil
	}
	c := Customer{ID: "cus_dev_" + idx.New().String(), Email: email}
	p.customers[email] = c
	return c, nil
}

func (p *DevProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.Quantity <= 0 {
		return CheckoutSession{}, fmt.Errorf("%w: quantity must be positive", ErrRejected)
	}

	id := "cs_dev_" + idx.New().String()
	session := CheckoutSession{
		ID:       id,
		URL:      p.baseURL + "/dev/checkout/" + id,
		Status:   CheckoutComplete,
		Metadata: maps.Clone(req.Metadata),
	}

	p.mu.Lock()
	p.sessions[id] = session
	hook := p.onDone
	p.mu.Unlock()

	if orgID, qty, ok := SeatPurchaseFromMetadata(req.Metadata); ok && hook != nil {
		err := hook(ctx, SeatPurchase{
			EventID:    "evt_" + id,
			CheckoutID: id,
			OrgID:      orgID,
			Quantity:   qty,
		})
		if err != nil {
			return CheckoutSession{}, fmt.Errorf("payment: dev checkout completion: %w", err)
		}
	}

	return session, nil
}

func (p *DevProcessor) RetrieveSession(_ context.Context, id string) (CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[id]
	if !ok {
		return CheckoutSession{}, ErrNotFound
	}
	return s, nil
}

func (p *DevProcessor) UpdateSubscriptionQuantity(context.Context, string, int) error {
	return nil
}

func (p *DevProcessor) CreatePortalSession(_ context.Context, customerRef, _ string) (string, error) {
	return p.baseURL + "/dev/portal/" + customerRef, nil
}
