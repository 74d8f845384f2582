package models

import (
	"time"
)

type User struct {
	ID            string
	Name          string
	LastName      string
	Username      string
	Email         string
	PasswordHash  string // random hash for OAuth-created accounts
	EmailVerified bool
	Role          string // "user", "admin"

	// Lockout state. FailedAttempts and LockedUntil track the current
	// lockout cycle; BlockCount counts completed cycles and only a fully
	// successful login resets it. PermanentlyBlocked is sticky until a
	// password reset.
	FailedAttempts     int
	LockedUntil        *time.Time
	BlockCount         int
	PermanentlyBlocked bool

	// CurrentSession is the sid of the single live session, nil when the
	// user has never logged in or has logged out everywhere.
	CurrentSession *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether a temporary lock is still in force at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// LockExpired reports whether a past temporary lock should be lazily cleared.
func (u *User) LockExpired(now time.Time) bool {
	return u.LockedUntil != nil && !now.Before(*u.LockedUntil)
}
