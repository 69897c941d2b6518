package domain

import "time"

// AuthorizationCodeTTL bounds how long a pending browser handoff may live.
const AuthorizationCodeTTL = 10 * time.Minute

// AuthorizationCode is a pending extension login. The extension creates it
// (state + PKCE challenge) and keeps the one-time code; the browser confirms
// the state once the user is signed in; a successful exchange destroys it.
type AuthorizationCode struct {
	ID            string
	State         string
	CodeHash      *string // fingerprint of the one-time code
	CodeChallenge string  // S256
	RedirectURI   string
	SubjectID     *string // set on confirmation
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
	ExpiresAt     time.Time
}

// Confirmed reports whether a browser session has attached a subject.
func (c AuthorizationCode) Confirmed() bool {
	return c.SubjectID != nil && c.CodeHash != nil
}

// Expired reports whether the code is past its expiry at now.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
