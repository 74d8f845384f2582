package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountLockedTemporary = errors.New("account is temporarily locked")
	ErrAccountLockedPermanent = errors.New("account is permanently blocked")
	ErrEmailNotVerified       = errors.New("email address not verified")

	// Session lifecycle errors
	ErrSessionReplaced      = errors.New("session replaced by a newer login")
	ErrRefreshRevoked       = errors.New("refresh token has been revoked")
	ErrRefreshExpired       = errors.New("refresh token has expired")
	ErrRefreshReuseDetected = errors.New("refresh token not recognized")
	ErrCSRFMismatch         = errors.New("csrf token missing or invalid")

	// ErrCaptchaFailed means the bot-challenge token was missing or the
	// verification service rejected it.
	ErrCaptchaFailed = errors.New("captcha verification failed")

	// Two-factor errors
	ErrTwoFactorInvalid = errors.New("verification code is incorrect")
	ErrTwoFactorExpired = errors.New("verification code expired or missing")
	ErrResendThrottled  = errors.New("too many resend requests")

	// Booking errors
	ErrNoAvailableLane  = errors.New("no lane available for the requested window")
	ErrLaneConflict     = errors.New("lane already booked for the requested window")
	ErrCapacityExceeded = errors.New("party size exceeds the allowed maximum")
)

// AccountLockedError is a temporary lock carrying when it lifts.
// Matches ErrAccountLockedTemporary under errors.Is.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked until %s", e.Until.Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLockedTemporary }

// ResendThrottledError carries how long the client must wait before
// another code can be sent. Matches ErrResendThrottled under errors.Is.
type ResendThrottledError struct {
	Remaining time.Duration
}

func (e *ResendThrottledError) Error() string {
	return fmt.Sprintf("too many resend requests, retry in %s", e.Remaining.Round(time.Second))
}

func (e *ResendThrottledError) Unwrap() error { return ErrResendThrottled }
