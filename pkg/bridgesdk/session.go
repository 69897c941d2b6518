package bridgesdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// refreshMargin refreshes the access token before it actually expires.
const refreshMargin = 30 * time.Second

// Session holds an extension's token pair and rotates it as needed. It is
// safe for concurrent use; concurrent callers share one refresh.
type Session struct {
	client *Client

	mu        sync.RWMutex
	tokens    TokenResponse
	expiresAt time.Time
	now       func() time.Time
}

// NewSession wraps tokens from Exchange or Refresh.
func (c *Client) NewSession(tokens *TokenResponse) *Session {
	s := &Session{client: c, now: time.Now}
	s.set(*tokens)
	return s
}

func (s *Session) set(tokens TokenResponse) {
	s.tokens = tokens
	s.expiresAt = s.now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshMargin)
}

// Tokens returns the current pair. Persist it after every call: refresh
// tokens are single use.
func (s *Session) Tokens() TokenResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// AccessToken returns a valid access token, refreshing first if the current
// one is about to expire.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.now().Before(s.expiresAt) {
		token := s.tokens.AccessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited
	if s.now().Before(s.expiresAt) {
		return s.tokens.AccessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.tokens.AccessToken, nil
}

// Refresh rotates the pair now.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.tokens.RefreshToken == "" {
		return errors.New("access token expired and no refresh token available")
	}

	tokens, err := s.client.Refresh(ctx, s.tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.set(*tokens)
	return nil
}

// Info describes the session. A 401 triggers one refresh and retry, which
// picks up plan changes such as a newly assigned seat.
func (s *Session) Info(ctx context.Context) (*SessionResponse, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.client.GetSession(ctx, token)
	if errors.Is(err, ErrInvalidToken) {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		return s.client.GetSession(ctx, s.Tokens().AccessToken)
	}
	return info, err
}

// Account returns the caller's account.
func (s *Session) Account(ctx context.Context) (*AccountResponse, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.GetAccount(ctx, token)
}

// Revoke logs the session out. The pair is cleared even when the server
// call fails.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.Lock()
	token := s.tokens.AccessToken
	s.tokens = TokenResponse{}
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if token == "" {
		return errors.New("session already revoked")
	}
	return s.client.RevokeSession(ctx, token)
}
