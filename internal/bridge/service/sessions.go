package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/aussiebroadwan/seatbridge/pkg/idx"
)

// Session store outcomes. The bridge maps these onto its own taxonomy.
var (
	ErrCodeNotFound     = errors.New("code_not_found")
	ErrCodeExpired      = errors.New("code_expired")
	ErrPkceMismatch     = errors.New("pkce_mismatch")
	ErrNotYetConfirmed  = errors.New("not_yet_confirmed")
	ErrSessionNotActive = errors.New("session_not_active")
)

// SessionStore owns authorization codes and extension sessions. It is the
// only writer of those rows.
type SessionStore struct {
	Store   store.Store
	CodeTTL time.Duration
	Now     func() time.Time
}

// PendingCode is what CreateAuthorizationCode hands back to the extension.
type PendingCode struct {
	State     string
	Code      string
	ExpiresAt time.Time
}

// CodeGrant is the result of a successful code redemption.
type CodeGrant struct {
	SubjectID   string
	RedirectURI string
}

// NewSession describes a session to persist. Tokens are stored as
// fingerprints only.
type NewSession struct {
	ID           string
	SubjectID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ClientInfo   string
}

// Bind returns a copy of the store whose writes go through st, typically a
// transaction.
func (s *SessionStore) Bind(st store.Store) *SessionStore {
	c := *s
	c.Store = st
	return &c
}

func (s *SessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionStore) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return domain.AuthorizationCodeTTL
}

// CreateAuthorizationCode stores a pending handoff. An empty state is
// generated; the code is always generated. Both carry 256 bits of entropy.
func (s *SessionStore) CreateAuthorizationCode(ctx context.Context, state, challenge, redirectURI string) (PendingCode, error) {
	if state == "" {
		var err error
		if state, err = cryptox.GenerateToken(cryptox.TokenSize256); err != nil {
			return PendingCode{}, err
		}
	}
	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return PendingCode{}, err
	}

	now := s.now()
	codeHash := cryptox.FingerprintToken(code)
	row := domain.AuthorizationCode{
		ID:            idx.NewAt(now).String(),
		State:         state,
		CodeHash:      &codeHash,
		CodeChallenge: challenge,
		RedirectURI:   redirectURI,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.codeTTL()),
	}
	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, row); err != nil {
		return PendingCode{}, err
	}

	return PendingCode{State: state, Code: code, ExpiresAt: row.ExpiresAt}, nil
}

// ConfirmAuthorizationCode attaches subjectID to the pending code for state.
// Confirming again as the same subject succeeds; a different subject gets
// ErrCodeAlreadyConfirmed.
func (s *SessionStore) ConfirmAuthorizationCode(ctx context.Context, state, subjectID string) (domain.AuthorizationCode, error) {
	c, err := s.Store.AuthorizationCodes().GetAuthorizationCodeByState(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthorizationCode{}, ErrCodeNotFound
		}
		return domain.AuthorizationCode{}, err
	}

	now := s.now()
	if c.Expired(now) {
		return domain.AuthorizationCode{}, ErrCodeExpired
	}
	if c.SubjectID != nil && *c.SubjectID != subjectID {
		return domain.AuthorizationCode{}, ErrCodeAlreadyConfirmed
	}
	if c.CodeHash == nil {
		return domain.AuthorizationCode{}, ErrCodeNotFound
	}
	if c.SubjectID != nil {
		return c, nil
	}

	err = s.Store.AuthorizationCodes().ConfirmAuthorizationCode(ctx, c.ID, subjectID, *c.CodeHash, now)
	switch {
	case errors.Is(err, store.ErrConflict):
		// Lost to a concurrent confirmation or exchange
		return domain.AuthorizationCode{}, ErrCodeAlreadyConfirmed
	case err != nil:
		return domain.AuthorizationCode{}, err
	}

	c.SubjectID, c.ConfirmedAt = &subjectID, &now
	return c, nil
}

// lookupCode finds the code row for (code, state). The fingerprint compare
// is constant time; a mismatch looks exactly like a missing row.
func (s *SessionStore) lookupCode(ctx context.Context, code, state string) (domain.AuthorizationCode, error) {
	if code == "" || state == "" {
		return domain.AuthorizationCode{}, ErrCodeNotFound
	}
	c, err := s.Store.AuthorizationCodes().GetAuthorizationCodeByState(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AuthorizationCode{}, ErrCodeNotFound
		}
		return domain.AuthorizationCode{}, err
	}
	if c.CodeHash == nil || !cryptox.EqualFingerprint(code, *c.CodeHash) {
		return domain.AuthorizationCode{}, ErrCodeNotFound
	}
	return c, nil
}

// ExchangeAuthorizationCode validates (code, state, verifier) and, inside one
// transaction, runs redeem and then deletes the code. redeem sees the grant
// and the transaction; if it fails the code survives. A concurrent exchange
// that already deleted the code makes this one fail with ErrCodeNotFound and
// roll back whatever redeem wrote.
//
// A failed PKCE check burns the code.
func (s *SessionStore) ExchangeAuthorizationCode(
	ctx context.Context,
	code, state, verifier string,
	redeem func(tx store.Tx, grant CodeGrant) error,
) (CodeGrant, error) {
	c, err := s.lookupCode(ctx, code, state)
	if err != nil {
		return CodeGrant{}, err
	}

	if c.Expired(s.now()) {
		return CodeGrant{}, ErrCodeExpired
	}
	if !c.Confirmed() {
		return CodeGrant{}, ErrNotYetConfirmed
	}
	if !cryptox.VerifyPKCE(verifier, c.CodeChallenge) {
		if err := s.Store.AuthorizationCodes().DeleteAuthorizationCode(ctx, c.ID, *c.CodeHash); err != nil && !errors.Is(err, store.ErrNotFound) {
			return CodeGrant{}, fmt.Errorf("burn code after pkce failure: %w", err)
		}
		return CodeGrant{}, ErrPkceMismatch
	}

	grant := CodeGrant{SubjectID: *c.SubjectID, RedirectURI: c.RedirectURI}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if redeem != nil {
			if err := redeem(tx, grant); err != nil {
				return err
			}
		}
		if err := tx.AuthorizationCodes().DeleteAuthorizationCode(ctx, c.ID, *c.CodeHash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCodeNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return CodeGrant{}, err
	}
	return grant, nil
}

// PersistSession stores a new active session.
func (s *SessionStore) PersistSession(ctx context.Context, in NewSession) (domain.Session, error) {
	now := s.now()
	sess := domain.Session{
		ID:          in.ID,
		SubjectID:   in.SubjectID,
		AccessHash:  cryptox.FingerprintToken(in.AccessToken),
		RefreshHash: cryptox.FingerprintToken(in.RefreshToken),
		ClientInfo:  in.ClientInfo,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   in.ExpiresAt.UTC(),
		Active:      true,
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// GetActiveSession returns the session if it is active and unexpired,
// otherwise ErrSessionNotActive.
func (s *SessionStore) GetActiveSession(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetActiveSession(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotActive
		}
		return domain.Session{}, err
	}
	return sess, nil
}

// RotateSession deactivates oldID and creates its successor atomically. If
// oldID was already rotated or revoked nothing is written and
// ErrSessionNotActive is returned.
func (s *SessionStore) RotateSession(ctx context.Context, oldID string, next NewSession) (domain.Session, error) {
	var created domain.Session
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().MarkSessionReplaced(ctx, oldID, next.ID, s.now()); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrSessionNotActive
			}
			return err
		}
		var err error
		created, err = s.Bind(tx).PersistSession(ctx, next)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}
	return created, nil
}

// RevokeSession deactivates a session. Revoking an inactive session is a
// no-op; an unknown id is ErrSessionNotActive.
func (s *SessionStore) RevokeSession(ctx context.Context, id string) error {
	err := s.Store.Sessions().RevokeSession(ctx, id, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotActive
	}
	return err
}

// RevokeSessionChain revokes id and every session rotated out of it,
// following replaced_by to the live end of the chain. It returns how many
// sessions were still active. Sessions already pruned end the walk.
func (s *SessionStore) RevokeSessionChain(ctx context.Context, id string) (int, error) {
	revoked := 0
	seen := make(map[string]bool)
	for next := &id; next != nil && !seen[*next]; {
		cur := *next
		seen[cur] = true

		// Revoke before reading replaced_by: a rotation that lost the race
		// fails on the inactive row, one that won is visible to the read.
		before, err := s.Store.Sessions().GetSession(ctx, cur)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return revoked, err
		}
		if err := s.Store.Sessions().RevokeSession(ctx, cur, s.now()); err != nil {
			return revoked, err
		}
		if before.Active {
			revoked++
		}

		after, err := s.Store.Sessions().GetSession(ctx, cur)
		if err != nil {
			return revoked, err
		}
		next = after.ReplacedBy
	}
	return revoked, nil
}

// TouchSession records a verified use.
func (s *SessionStore) TouchSession(ctx context.Context, id string) error {
	return s.Store.Sessions().TouchSession(ctx, id, s.now())
}
