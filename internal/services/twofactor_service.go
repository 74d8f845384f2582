package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/pittsbowling/api/internal/metrics"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/twofactor"
	"github.com/pittsbowling/api/pkg/logger"
)

// TwoFactorService runs the email-code step between a correct password
// and an issued session. Codes live in the CodeStore with a short TTL;
// resends are throttled by cooldown and a hard cap.
type TwoFactorService struct {
	store    twofactor.CodeStore
	notifier Notifier
	audit    *logger.AuditLogger

	codeExpiry     time.Duration
	resendCooldown time.Duration
	maxResends     int
}

func NewTwoFactorService(store twofactor.CodeStore, notifier Notifier, audit *logger.AuditLogger, codeExpiry, resendCooldown time.Duration, maxResends int) *TwoFactorService {
	return &TwoFactorService{
		store:          store,
		notifier:       notifier,
		audit:          audit,
		codeExpiry:     codeExpiry,
		resendCooldown: resendCooldown,
		maxResends:     maxResends,
	}
}

// Initiate generates a fresh code for the user and emails it. Any prior
// pending code is replaced, so only the newest code verifies.
func (s *TwoFactorService) Initiate(ctx context.Context, user *models.User) error {
	code, err := generateCode()
	if err != nil {
		return err
	}

	now := time.Now()
	pending := twofactor.PendingLogin{Code: code, Email: user.Email, CreatedAt: now}
	if err := s.store.SavePending(ctx, user.ID, pending, s.codeExpiry); err != nil {
		return fmt.Errorf("failed to store pending code: %w", err)
	}

	state := twofactor.ResendState{Count: 0, LastSentAt: now}
	if err := s.store.SaveResendState(ctx, user.ID, state, s.codeExpiry); err != nil {
		return fmt.Errorf("failed to store resend state: %w", err)
	}

	if err := s.notifier.SendTwoFactorCode(ctx, user.Email, user.Name, code); err != nil {
		return err
	}

	metrics.TwoFactorCodes.WithLabelValues("initial").Inc()
	return nil
}

// Resend re-issues the challenge with a new code. Rejected when no
// challenge is pending, when the cooldown since the last send has not
// elapsed, or when the resend cap is exhausted.
func (s *TwoFactorService) Resend(ctx context.Context, user *models.User) error {
	pending, err := s.store.GetPending(ctx, user.ID)
	if err != nil {
		return err
	}
	if pending == nil {
		return models.ErrTwoFactorExpired
	}

	now := time.Now()
	state, err := s.store.GetResendState(ctx, user.ID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &twofactor.ResendState{LastSentAt: pending.CreatedAt}
	}

	if wait := s.resendCooldown - now.Sub(state.LastSentAt); wait > 0 {
		return &models.ResendThrottledError{Remaining: wait}
	}
	if state.Count >= s.maxResends {
		s.audit.LogSecurityEvent("twofactor_resend_cap_reached", user.ID, nil)
		// Cap exhausted: the wait is however long the pending challenge
		// has left before the client must restart the login.
		return &models.ResendThrottledError{Remaining: pending.CreatedAt.Add(s.codeExpiry).Sub(now)}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	if err := s.store.SavePending(ctx, user.ID, twofactor.PendingLogin{Code: code, Email: user.Email, CreatedAt: now}, s.codeExpiry); err != nil {
		return fmt.Errorf("failed to store pending code: %w", err)
	}

	state.Count++
	state.LastSentAt = now
	if err := s.store.SaveResendState(ctx, user.ID, *state, s.codeExpiry); err != nil {
		return fmt.Errorf("failed to store resend state: %w", err)
	}

	if err := s.notifier.SendTwoFactorCode(ctx, user.Email, user.Name, code); err != nil {
		return err
	}

	metrics.TwoFactorCodes.WithLabelValues("resend").Inc()
	return nil
}

// Verify consumes the pending code. A correct code deletes all pending
// state so it can never be replayed; an incorrect one leaves the
// challenge in place for another try within the TTL.
func (s *TwoFactorService) Verify(ctx context.Context, userID, code string) error {
	pending, err := s.store.GetPending(ctx, userID)
	if err != nil {
		return err
	}
	if pending == nil {
		return models.ErrTwoFactorExpired
	}

	if subtle.ConstantTimeCompare([]byte(pending.Code), []byte(code)) != 1 {
		return models.ErrTwoFactorInvalid
	}

	if err := s.store.DeletePending(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteResendState(ctx, userID); err != nil {
		return err
	}
	return nil
}

// Cancel drops any pending challenge, e.g. when a new password attempt
// restarts the flow.
func (s *TwoFactorService) Cancel(ctx context.Context, userID string) error {
	if err := s.store.DeletePending(ctx, userID); err != nil {
		return err
	}
	return s.store.DeleteResendState(ctx, userID)
}

// generateCode returns a uniformly random six-digit code, left-padded
// with zeros.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
