package identity

import (
	"context"
	"fmt"
	"strings"
)

// DevPrefix marks a development assertion: "dev:<subject>[:<email>]".
const DevPrefix = "dev:"

// DevProvider trusts any well-formed development assertion. It exists so the
// confirm and account endpoints can be driven locally without a real
// identity provider and must never be wired into production.
type DevProvider struct{}

// NewDevProvider returns a DevProvider.
func NewDevProvider() *DevProvider {
	return &DevProvider{}
}

func (DevProvider) VerifyAssertion(_ context.Context, credential string) (Identity, error) {
	rest, ok := strings.CutPrefix(credential, DevPrefix)
	if !ok || rest == "" {
		return Identity{}, fmt.Errorf("%w: not a development assertion", ErrInvalidAssertion)
	}

	subject, email, _ := strings.Cut(rest, ":")
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: empty subject", ErrInvalidAssertion)
	}
	if email == "" {
		email = subject + "@dev.local"
	}

	return Identity{
		SubjectID:   subject,
		Email:       strings.ToLower(email),
		DisplayName: subject,
	}, nil
}
