package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature: "ts=<unix>;h1=<hex>".
const SignatureHeader = "Bridge-Signature"

// DefaultSignatureTolerance bounds how old a signed webhook may be.
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrInvalidEvent     = errors.New("payment: invalid webhook event")
)

// Webhook event types.
const (
	EventCheckoutCompleted    = "checkout.completed"
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
)

// Sign produces the signature header value for body at ts.
func Sign(secret []byte, body []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "ts=" + unix + ";h1=" + hex.EncodeToString(mac(secret, unix, body))
}

// VerifySignature checks header against an HMAC-SHA256 of "ts:body" and
// rejects signatures older than tolerance.
func VerifySignature(secret []byte, header string, body []byte, now time.Time, tolerance time.Duration) error {
	if len(secret) == 0 {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}

	var ts, h1 string
	for part := range strings.SplitSeq(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "h1":
			h1 = v
		}
	}
	if ts == "" || h1 == "" {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := now.Sub(time.Unix(unix, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	got, err := hex.DecodeString(h1)
	if err != nil {
		return fmt.Errorf("%w: bad digest", ErrInvalidSignature)
	}
	if !hmac.Equal(got, mac(secret, ts, body)) {
		return ErrInvalidSignature
	}
	return nil
}

func mac(secret []byte, ts string, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(ts))
	h.Write([]byte(":"))
	h.Write(body)
	return h.Sum(nil)
}

// Event is a webhook envelope.
type Event struct {
	ID         string          `json:"event_id"`
	Type       string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// CheckoutCompleted is the data of a checkout.completed event.
type CheckoutCompleted struct {
	SessionID       string            `json:"session_id"`
	CustomerRef     string            `json:"customer_id"`
	SubscriptionRef string            `json:"subscription_id"`
	Metadata        map[string]string `json:"metadata"`
}

// SubscriptionChanged is the data of the subscription.* events.
type SubscriptionChanged struct {
	SubscriptionRef  string            `json:"subscription_id"`
	CustomerRef      string            `json:"customer_id"`
	Status           string            `json:"status"`
	PlanType         string            `json:"plan_type"`
	BillingFrequency string            `json:"billing_frequency"`
	Quantity         int               `json:"quantity"`
	CurrentPeriodEnd *time.Time        `json:"current_period_end,omitempty"`
	Metadata         map[string]string `json:"metadata"`
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if e.ID == "" || e.Type == "" {
		return Event{}, fmt.Errorf("%w: missing id or type", ErrInvalidEvent)
	}
	return e, nil
}

// Checkout decodes the data of a checkout.completed event.
func (e Event) Checkout() (CheckoutCompleted, error) {
	if e.Type != EventCheckoutCompleted {
		return CheckoutCompleted{}, fmt.Errorf("%w: %s is not a checkout event", ErrInvalidEvent, e.Type)
	}
	var c CheckoutCompleted
	if err := json.Unmarshal(e.Data, &c); err != nil {
		return CheckoutCompleted{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return c, nil
}

// Subscription decodes the data of a subscription.* event.
func (e Event) Subscription() (SubscriptionChanged, error) {
	if !strings.HasPrefix(e.Type, "subscription.") {
		return SubscriptionChanged{}, fmt.Errorf("%w: %s is not a subscription event", ErrInvalidEvent, e.Type)
	}
	var s SubscriptionChanged
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return SubscriptionChanged{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if s.SubscriptionRef == "" {
		return SubscriptionChanged{}, fmt.Errorf("%w: missing subscription id", ErrInvalidEvent)
	}
	return s, nil
}
