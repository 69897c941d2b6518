// Package environment bundles the collaborators that differ between a
// production deployment and local development.
package environment

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
)

const (
	NameProduction  = "production"
	NameDevelopment = "development"
)

var ErrInvalidRedirectURI = errors.New("environment: invalid redirect uri")

// Environment is the capability set a service instance runs with.
type Environment interface {
	Name() string
	Production() bool
	Identity() identity.Provider
	Payments() payment.Processor

	// ValidateRedirectURI checks where a confirmed code may be handed back.
	ValidateRedirectURI(uri string) error
}

type env struct {
	name     string
	identity identity.Provider
	payments payment.Processor
}

// NewProduction returns an environment backed by the real identity provider
// and payment processor.
func NewProduction(idp identity.Provider, payments payment.Processor) (Environment, error) {
	if idp == nil || payments == nil {
		return nil, errors.New("environment: production needs an identity provider and a payment processor")
	}
	return &env{name: NameProduction, identity: idp, payments: payments}, nil
}

// NewDevelopment returns an environment that accepts "dev:" assertions and
// completes checkouts in memory.
func NewDevelopment(payments *payment.DevProcessor) Environment {
	return &env{name: NameDevelopment, identity: identity.NewDevProvider(), payments: payments}
}

func (e *env) Name() string                { return e.name }
func (e *env) Production() bool            { return e.name == NameProduction }
func (e *env) Identity() identity.Provider { return e.identity }
func (e *env) Payments() payment.Processor { return e.payments }

// Schemes that can never be a redirect target.
var blockedSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"file":       true,
	"vbscript":   true,
	"about":      true,
	"blob":       true,
	"ftp":        true,
	"ws":         true,
	"wss":        true,
}

func (e *env) ValidateRedirectURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRedirectURI)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRedirectURI, err)
	}
	if u.Fragment != "" {
		return fmt.Errorf("%w: fragment not allowed", ErrInvalidRedirectURI)
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "":
		return fmt.Errorf("%w: missing scheme", ErrInvalidRedirectURI)
	case scheme == "https":
		if u.Host == "" {
			return fmt.Errorf("%w: missing host", ErrInvalidRedirectURI)
		}
		return nil
	case scheme == "http":
		if isLoopback(u.Hostname()) || !e.Production() {
			return nil
		}
		return fmt.Errorf("%w: plain http is only allowed on loopback", ErrInvalidRedirectURI)
	case blockedSchemes[scheme]:
		return fmt.Errorf("%w: scheme %q not allowed", ErrInvalidRedirectURI, scheme)
	default:
		// Editor deep link such as vscode://publisher.extension/auth
		return nil
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
