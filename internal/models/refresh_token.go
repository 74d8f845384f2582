package models

import "time"

// RefreshToken is the stored form of an issued refresh token. Only the
// SHA-256 hash of the raw token is persisted; a database leak cannot be
// replayed directly. At most one non-revoked row exists per session id.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	SessionID string
	ExpiresAt time.Time
	Revoked   bool
	IP        string // audit only
	UserAgent string // audit only
	CreatedAt time.Time
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
