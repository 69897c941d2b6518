package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/idx"
	"github.com/cenkalti/backoff/v5"
)

// HTTPConfig configures an HTTPProcessor.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	MaxRetries uint
	HTTPClient *http.Client
}

// HTTPProcessor is a Processor backed by the processor's REST API. Requests
// that fail with a network error, 429 or 5xx are retried with exponential
// backoff; every POST carries an idempotency key that stays the same
// across retries.
type HTTPProcessor struct {
	base       *url.URL
	apiKey     string
	maxRetries uint
	client     *http.Client
}

// NewHTTPProcessor validates cfg and returns a processor.
func NewHTTPProcessor(cfg HTTPConfig) (*HTTPProcessor, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("payment: base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("payment: API key is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("payment: invalid base URL: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 4
	}

	return &HTTPProcessor{base: base, apiKey: cfg.APIKey, maxRetries: retries, client: client}, nil
}

func (p *HTTPProcessor) CreateOrGetCustomer(ctx context.Context, email string, metadata map[string]string) (Customer, error) {
	var out Customer
	err := p.do(ctx, http.MethodPost, "/customers", map[string]any{
		"email":    email,
		"metadata": metadata,
	}, &out)
	return out, err
}

func (p *HTTPProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	var out CheckoutSession
	err := p.do(ctx, http.MethodPost, "/checkout/sessions", map[string]any{
		"customer_id": req.CustomerRef,
		"items":       []map[string]any{{"price_id": req.PriceID, "quantity": req.Quantity}},
		"metadata":    req.Metadata,
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
	}, &out)
	return out, err
}

func (p *HTTPProcessor) RetrieveSession(ctx context.Context, id string) (CheckoutSession, error) {
	var out CheckoutSession
	err := p.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (p *HTTPProcessor) UpdateSubscriptionQuantity(ctx context.Context, subscriptionRef string, quantity int) error {
	return p.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionRef)+"/quantity", map[string]any{
		"quantity": quantity,
	}, nil)
}

func (p *HTTPProcessor) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := p.do(ctx, http.MethodPost, "/portal/sessions", map[string]any{
		"customer_id": customerRef,
		"return_url":  returnURL,
	}, &out)
	return out.URL, err
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("payment API returned %d: %s", e.Status, e.Message)
}

func (p *HTTPProcessor) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("payment: encode request: %w", err)
		}
	}
	idempotencyKey := idx.New().String()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := p.attempt(ctx, method, path, idempotencyKey, payload, out)
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status != http.StatusTooManyRequests && apiErr.Status < 500 {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(p.maxRetries),
		backoff.WithMaxElapsedTime(30*time.Second),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "payment request failed, retrying",
				slog.String("method", method),
				slog.String("path", path),
				slog.Duration("backoff", next),
				slog.Any("error", err),
			)
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRejected, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (p *HTTPProcessor) attempt(ctx context.Context, method, path, idempotencyKey string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.base.String()+path, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		msg := e.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
