package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/environment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/obs"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/aussiebroadwan/seatbridge/pkg/idx"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

const maxStateLen = 512

// BridgeService hands a browser-authenticated identity over to an editor
// extension and keeps the resulting session alive through refresh rotation.
//
// Lifecycle of one attempt:
//
//	INITIATED -> CONFIRMED -> EXCHANGED -> (ROTATED)* -> REVOKED | EXPIRED
//
// INITIATED and CONFIRMED expire with the code; EXCHANGED sessions expire
// with their refresh token.
type BridgeService struct {
	Store    store.Store
	Sessions *SessionStore
	Codec    *jwtx.Codec
	Env      environment.Environment

	// NewSessionID defaults to a fresh ULID.
	NewSessionID func() string
	Now          func() time.Time
}

// InitiateRequest starts a handoff from the extension.
type InitiateRequest struct {
	State         string
	CodeChallenge string
	RedirectURI   string
}

// ExchangeRequest redeems a confirmed code.
type ExchangeRequest struct {
	Code         string
	State        string
	CodeVerifier string
	ClientInfo   string
}

// Principal is the verified caller behind an access token.
type Principal struct {
	SubjectID string
	SessionID string
	Claims    jwtx.Claims
}

func (s *BridgeService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *BridgeService) newSessionID() string {
	if s.NewSessionID != nil {
		return s.NewSessionID()
	}
	return idx.New().String()
}

// Initiate creates a pending code bound to the PKCE challenge. The returned
// code stays with the extension; only the state travels through the browser.
func (s *BridgeService) Initiate(ctx context.Context, req InitiateRequest) (PendingCode, error) {
	l := slogx.FromContext(ctx)

	req.State = strings.TrimSpace(req.State)
	req.RedirectURI = strings.TrimSpace(req.RedirectURI)
	if err := cryptox.ValidateChallenge(req.CodeChallenge); err != nil {
		return PendingCode{}, ErrInvalidRequest
	}
	if len(req.State) > maxStateLen {
		return PendingCode{}, ErrInvalidRequest
	}
	if req.RedirectURI != "" {
		if err := s.Env.ValidateRedirectURI(req.RedirectURI); err != nil {
			l.Info("rejected redirect uri", slog.String("redirect_uri", req.RedirectURI), slog.Any("err", err))
			return PendingCode{}, ErrInvalidRedirectURI
		}
	}

	pending, err := s.Sessions.CreateAuthorizationCode(ctx, req.State, req.CodeChallenge, req.RedirectURI)
	if errors.Is(err, store.ErrAlreadyExists) {
		return PendingCode{}, ErrInvalidRequest
	}
	obs.AuthFlow("initiate", outcome(err))
	if err != nil {
		return PendingCode{}, upstream(err)
	}
	return pending, nil
}

// Confirm attaches the signed-in browser subject to state. It returns the
// redirect URI the browser should notify.
func (s *BridgeService) Confirm(ctx context.Context, state, subjectID string) (string, error) {
	l := slogx.FromContext(ctx)

	if state == "" || subjectID == "" {
		return "", ErrInvalidRequest
	}

	c, err := s.Sessions.ConfirmAuthorizationCode(ctx, state, subjectID)
	switch {
	case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrCodeExpired):
		err = ErrInvalidOrExpiredCode
	case errors.Is(err, ErrCodeAlreadyConfirmed):
		l.Warn("authorization code confirmed by another subject", slog.String("subject_id", subjectID))
	}
	obs.AuthFlow("confirm", outcome(err))
	if err != nil {
		return "", upstream(err)
	}
	return c.RedirectURI, nil
}

// Exchange redeems (code, state, verifier) for a token pair. Checks run in a
// fixed order: code lookup, confirmation, PKCE, account. Minting, persisting
// the session and destroying the code happen in one transaction so that of
// any number of concurrent exchanges at most one succeeds.
func (s *BridgeService) Exchange(ctx context.Context, req ExchangeRequest) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	var pair domain.TokenPair
	_, err := s.Sessions.ExchangeAuthorizationCode(ctx, req.Code, req.State, req.CodeVerifier,
		func(tx store.Tx, grant CodeGrant) error {
			account, err := tx.Accounts().GetAccount(ctx, grant.SubjectID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrAccountNotFound
				}
				return err
			}

			sid := s.newSessionID()
			pair, err = s.issue(ctx, tx, account, sid)
			if err != nil {
				return err
			}

			_, err = s.Sessions.Bind(tx).PersistSession(ctx, NewSession{
				ID:           sid,
				SubjectID:    account.SubjectID,
				AccessToken:  pair.AccessToken,
				RefreshToken: pair.RefreshToken,
				ExpiresAt:    s.now().Add(jwtx.RefreshTokenTTL),
				ClientInfo:   req.ClientInfo,
			})
			return err
		})

	switch {
	case errors.Is(err, ErrCodeNotFound), errors.Is(err, ErrCodeExpired):
		err = ErrInvalidOrExpiredCode
	case errors.Is(err, ErrNotYetConfirmed):
		err = ErrAuthNotComplete
	case errors.Is(err, ErrPkceMismatch):
		l.Warn("pkce verification failed, code burned")
		err = ErrInvalidPkceVerifier
	case errors.Is(err, store.ErrAlreadyExists):
		// Session id collision; the caller may retry with the same code
		err = ErrInvalidRequest
	}
	obs.AuthFlow("exchange", outcome(err))
	if err != nil {
		return domain.TokenPair{}, upstream(err)
	}

	l.Info("extension session created", slog.String("session_id", pair.SessionID))
	return pair, nil
}

// Refresh verifies a refresh token and rotates its session. The old session
// is deactivated and the successor created in one transaction; presenting
// the old token again fails. Presenting a token whose session was already
// rotated also revokes every session rotated out of it, since one of the two
// holders is not the legitimate client.
func (s *BridgeService) Refresh(ctx context.Context, refreshToken, clientInfo string) (domain.TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken, clientInfo)
	obs.AuthFlow("refresh", outcome(err))
	return pair, err
}

func (s *BridgeService) refresh(ctx context.Context, refreshToken, clientInfo string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		l.Warn("refresh token rejected", slog.Any("err", err))
		return domain.TokenPair{}, ErrInvalidToken
	}

	sess, err := s.Store.Sessions().GetSession(ctx, claims.SID)
	if err != nil {
		return domain.TokenPair{}, invalidToken(err)
	}
	if sess.SubjectID != claims.Subject || !cryptox.EqualFingerprint(refreshToken, sess.RefreshHash) {
		l.Warn("refresh token does not match its session", slog.String("session_id", sess.ID))
		return domain.TokenPair{}, ErrInvalidToken
	}
	if !sess.Usable(s.now()) {
		if sess.ReplacedBy != nil {
			n, err := s.Sessions.RevokeSessionChain(ctx, *sess.ReplacedBy)
			l.Warn("rotated refresh token presented again, revoked its successors",
				slog.String("session_id", sess.ID),
				slog.String("successor_id", *sess.ReplacedBy),
				slog.Int("revoked", n),
			)
			if err != nil {
				l.Error("failed to revoke successor sessions", slog.Any("err", err))
			}
		}
		return domain.TokenPair{}, ErrInvalidToken
	}

	account, err := s.Store.Accounts().GetAccount(ctx, sess.SubjectID)
	if err != nil {
		return domain.TokenPair{}, invalidToken(err)
	}

	sid := s.newSessionID()
	pair, err := s.issue(ctx, s.Store, account, sid)
	if err != nil {
		return domain.TokenPair{}, upstream(err)
	}

	if clientInfo == "" {
		clientInfo = sess.ClientInfo
	}
	_, err = s.Sessions.RotateSession(ctx, sess.ID, NewSession{
		ID:           sid,
		SubjectID:    account.SubjectID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    s.now().Add(jwtx.RefreshTokenTTL),
		ClientInfo:   clientInfo,
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotActive) {
			// A concurrent refresh won the rotation
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, upstream(err)
	}

	return pair, nil
}

// Authenticate verifies an access token statelessly, then checks that its
// session is still live and that the token is the one issued for it.
func (s *BridgeService) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Codec.VerifyAccessToken(accessToken)
	if err != nil {
		l.Warn("access token rejected", slog.Any("err", err))
		return Principal{}, ErrInvalidToken
	}

	sess, err := s.Sessions.GetActiveSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotActive) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, upstream(err)
	}
	if !cryptox.EqualFingerprint(accessToken, sess.AccessHash) {
		return Principal{}, ErrInvalidToken
	}

	if err := s.Sessions.TouchSession(ctx, sess.ID); err != nil {
		l.Warn("failed to update session last use", slog.Any("err", err))
	}

	return Principal{SubjectID: claims.Subject, SessionID: claims.SID, Claims: claims}, nil
}

// Revoke ends the session. Unknown sessions are ignored.
func (s *BridgeService) Revoke(ctx context.Context, sessionID string) error {
	err := s.Sessions.RevokeSession(ctx, sessionID)
	obs.AuthFlow("revoke", outcome(err))
	if err != nil && !errors.Is(err, ErrSessionNotActive) {
		return upstream(err)
	}
	return nil
}

// issue mints the access/refresh pair for account under sid. Organization
// attribution comes from the subject's active seat, if any.
func (s *BridgeService) issue(ctx context.Context, st store.Store, account domain.Account, sid string) (domain.TokenPair, error) {
	org, err := orgAttribution(ctx, st, account.SubjectID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	access, _, err := s.Codec.MintAccessToken(jwtx.Subject{
		ID:       account.SubjectID,
		Email:    account.Email,
		PlanType: account.PlanType,
		Credits:  account.Credits,
	}, sid, org)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, _, err := s.Codec.MintRefreshToken(account.SubjectID, sid)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sid,
		ExpiresIn:    jwtx.AccessTokenTTL,
	}, nil
}

func orgAttribution(ctx context.Context, st store.Store, subjectID string) (*jwtx.OrgAttribution, error) {
	seat, err := st.Seats().GetActiveSeatBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	sub, err := st.Subscriptions().GetSubscriptionByOrg(ctx, seat.OrgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &jwtx.OrgAttribution{
		OrgID:             seat.OrgID,
		OrgSubscriptionID: sub.ID,
		SeatID:            seat.ID,
		SeatRole:          seat.Role,
	}, nil
}
