// Package identity verifies assertions issued by the primary identity
// provider. The bridge never runs a login flow itself; the browser arrives
// already signed in and presents the provider's token.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAssertion means the credential was not accepted. The cause is
	// wrapped for logs only.
	ErrInvalidAssertion = errors.New("identity: invalid assertion")

	// ErrUnavailable means the provider's keys could not be fetched.
	ErrUnavailable = errors.New("identity: provider unavailable")
)

// Identity is the verified subject behind a browser session.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// Provider verifies a bearer credential from the primary web client.
type Provider interface {
	VerifyAssertion(ctx context.Context, credential string) (Identity, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, credential string) (Identity, error)

func (f ProviderFunc) VerifyAssertion(ctx context.Context, credential string) (Identity, error) {
	return f(ctx, credential)
}
