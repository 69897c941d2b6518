package http

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
)

// bridgeAuthenticator accepts bridge access tokens held by extensions.
func bridgeAuthenticator(bridge *service.BridgeService) httpx.Authenticator {
	return httpx.AuthenticatorFunc(func(ctx context.Context, bearer string) (httpx.Principal, error) {
		p, err := bridge.Authenticate(ctx, bearer)
		if err != nil {
			return httpx.Principal{}, err
		}
		return httpx.Principal{
			SubjectID: p.SubjectID,
			Email:     p.Claims.Email,
			SessionID: p.SessionID,
		}, nil
	})
}

// identityAuthenticator accepts the identity provider's assertion held by
// the signed-in browser.
func identityAuthenticator(idp identity.Provider) httpx.Authenticator {
	return httpx.AuthenticatorFunc(func(ctx context.Context, bearer string) (httpx.Principal, error) {
		id, err := idp.VerifyAssertion(ctx, bearer)
		if err != nil {
			return httpx.Principal{}, err
		}
		return httpx.Principal{
			SubjectID:   id.SubjectID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
		}, nil
	})
}

// anyAuthenticator tries each authenticator in turn.
func anyAuthenticator(auths ...httpx.Authenticator) httpx.Authenticator {
	return httpx.AuthenticatorFunc(func(ctx context.Context, bearer string) (httpx.Principal, error) {
		var errs []error
		for _, a := range auths {
			p, err := a.Authenticate(ctx, bearer)
			if err == nil {
				return p, nil
			}
			errs = append(errs, err)
		}
		return httpx.Principal{}, errors.Join(errs...)
	})
}
