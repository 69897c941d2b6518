package domain

import "time"

// Session is the server-side record behind an extension token pair. Only
// fingerprints of the tokens are stored.
type Session struct {
	ID          string
	SubjectID   string
	AccessHash  string
	RefreshHash string
	ClientInfo  string
	CreatedAt   time.Time
	LastUsedAt  time.Time
	ExpiresAt   time.Time
	Active      bool
	ReplacedBy  *string // successor after refresh rotation
	RevokedAt   *time.Time
}

// Usable reports whether the session may authenticate requests at now.
func (s Session) Usable(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// TokenPair is what a successful exchange or refresh hands the extension.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    time.Duration
}
