package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pittsbowling/api/internal/metrics"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/pkg/logger"
)

// lockoutStore is the slice of the user repository the lockout policy needs.
type lockoutStore interface {
	RecordFailedAttempt(ctx context.Context, userID string) (int, error)
	ApplyTemporaryLock(ctx context.Context, userID string, until time.Time) (int, error)
	ApplyPermanentBlock(ctx context.Context, userID string) error
	ClearExpiredLock(ctx context.Context, userID string) error
	ClearLockoutOnSuccess(ctx context.Context, userID string) error
}

// LockoutService enforces the escalation ladder: repeated password
// failures earn a temporary lock, repeated temporary locks earn a
// permanent block that only a password reset lifts.
type LockoutService struct {
	users lockoutStore
	audit *logger.AuditLogger

	maxFailedAttempts int
	lockDuration      time.Duration
	maxTemporaryLocks int
}

func NewLockoutService(users lockoutStore, audit *logger.AuditLogger, maxFailedAttempts int, lockDuration time.Duration, maxTemporaryLocks int) *LockoutService {
	return &LockoutService{
		users:             users,
		audit:             audit,
		maxFailedAttempts: maxFailedAttempts,
		lockDuration:      lockDuration,
		maxTemporaryLocks: maxTemporaryLocks,
	}
}

// Gate rejects a login attempt before the password is even checked.
// An expired temporary lock is lazily cleared here rather than by a
// background job; the block count survives the clear.
func (s *LockoutService) Gate(ctx context.Context, user *models.User, now time.Time) error {
	if user.PermanentlyBlocked {
		return models.ErrAccountLockedPermanent
	}

	if user.Locked(now) {
		return &models.AccountLockedError{Until: *user.LockedUntil}
	}

	if user.LockExpired(now) {
		if err := s.users.ClearExpiredLock(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to clear expired lock: %w", err)
		}
		user.LockedUntil = nil
		user.FailedAttempts = 0
	}

	return nil
}

// RegisterFailure records one bad password and applies whatever
// escalation the new counter value earns. The returned error tells the
// caller which lock state, if any, the account just entered; nil means
// the attempt failed without locking anything.
func (s *LockoutService) RegisterFailure(ctx context.Context, userID string, now time.Time) error {
	attempts, err := s.users.RecordFailedAttempt(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	if attempts < s.maxFailedAttempts {
		return nil
	}

	lockedUntil := now.Add(s.lockDuration)
	blocks, err := s.users.ApplyTemporaryLock(ctx, userID, lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to apply temporary lock: %w", err)
	}

	if blocks >= s.maxTemporaryLocks {
		if err := s.users.ApplyPermanentBlock(ctx, userID); err != nil {
			return fmt.Errorf("failed to apply permanent block: %w", err)
		}
		metrics.AccountLocks.WithLabelValues("permanent").Inc()
		s.audit.LogSecurityEvent("account_permanently_blocked", userID, map[string]string{
			"block_count": strconv.Itoa(blocks),
		})
		return models.ErrAccountLockedPermanent
	}

	metrics.AccountLocks.WithLabelValues("temporary").Inc()
	s.audit.LogSecurityEvent("account_temporarily_locked", userID, map[string]string{
		"block_count":   strconv.Itoa(blocks),
		"lock_duration": s.lockDuration.String(),
	})
	return &models.AccountLockedError{Until: lockedUntil}
}

// RegisterSuccess wipes the whole lockout ladder, block count included.
// Called only after the second factor succeeds.
func (s *LockoutService) RegisterSuccess(ctx context.Context, userID string) error {
	if err := s.users.ClearLockoutOnSuccess(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset lockout state: %w", err)
	}
	return nil
}
