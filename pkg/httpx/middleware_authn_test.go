package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestAuthnMiddleware(t *testing.T) {
	auth := httpx.AuthenticatorFunc(func(_ context.Context, bearer string) (httpx.Principal, error) {
		if bearer != "good" {
			return httpx.Principal{}, errors.New("bad token")
		}
		return httpx.Principal{SubjectID: "u1", SessionID: "sess1"}, nil
	})

	var seen httpx.Principal
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}), httpx.AuthnMiddleware(auth))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"rejected token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
		{"lowercase scheme", "bearer good", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer error=\"invalid_token\""))
				require.NotContains(t, rec.Body.String(), "bad token")
			} else {
				require.Equal(t, "u1", seen.SubjectID)
				require.Equal(t, "sess1", seen.SessionID)
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), nil, mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		State string `json:"state"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"state":"s1"}`))
	require.NoError(t, httpx.DecodeJSON(req, &body))
	require.Equal(t, "s1", body.State)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"state":"s1","extra":1}`))
	require.ErrorIs(t, httpx.DecodeJSON(req, &body), httpx.ErrBadBody)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"state":"s1"}{"state":"s2"}`))
	require.ErrorIs(t, httpx.DecodeJSON(req, &body), httpx.ErrBadBody)
}
