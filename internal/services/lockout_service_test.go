package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/pkg/logger"
)

type mockLockoutStore struct {
	recordFailedFunc   func(ctx context.Context, userID string) (int, error)
	applyTempLockFunc  func(ctx context.Context, userID string, until time.Time) (int, error)
	applyPermBlockFunc func(ctx context.Context, userID string) error
	clearExpiredFunc   func(ctx context.Context, userID string) error
	clearOnSuccessFunc func(ctx context.Context, userID string) error
}

func (m *mockLockoutStore) RecordFailedAttempt(ctx context.Context, userID string) (int, error) {
	return m.recordFailedFunc(ctx, userID)
}

func (m *mockLockoutStore) ApplyTemporaryLock(ctx context.Context, userID string, until time.Time) (int, error) {
	return m.applyTempLockFunc(ctx, userID, until)
}

func (m *mockLockoutStore) ApplyPermanentBlock(ctx context.Context, userID string) error {
	return m.applyPermBlockFunc(ctx, userID)
}

func (m *mockLockoutStore) ClearExpiredLock(ctx context.Context, userID string) error {
	return m.clearExpiredFunc(ctx, userID)
}

func (m *mockLockoutStore) ClearLockoutOnSuccess(ctx context.Context, userID string) error {
	return m.clearOnSuccessFunc(ctx, userID)
}

func testAudit() *logger.AuditLogger {
	return logger.NewAuditLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newLockoutService(store *mockLockoutStore) *LockoutService {
	return NewLockoutService(store, testAudit(), 4, 5*time.Minute, 3)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestGatePermanentBlock(t *testing.T) {
	svc := newLockoutService(&mockLockoutStore{})
	user := &models.User{ID: "u1", PermanentlyBlocked: true}

	err := svc.Gate(context.Background(), user, time.Now())
	assert.ErrorIs(t, err, models.ErrAccountLockedPermanent)
}

func TestGateActiveTemporaryLock(t *testing.T) {
	svc := newLockoutService(&mockLockoutStore{})
	until := time.Now().Add(3 * time.Minute)
	user := &models.User{ID: "u1", LockedUntil: timePtr(until)}

	err := svc.Gate(context.Background(), user, time.Now())
	assert.ErrorIs(t, err, models.ErrAccountLockedTemporary)

	var locked *models.AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.True(t, until.Equal(locked.Until))
}

func TestGateClearsExpiredLockLazily(t *testing.T) {
	cleared := false
	store := &mockLockoutStore{
		clearExpiredFunc: func(ctx context.Context, userID string) error {
			cleared = true
			assert.Equal(t, "u1", userID)
			return nil
		},
	}
	svc := newLockoutService(store)

	user := &models.User{
		ID:             "u1",
		FailedAttempts: 4,
		LockedUntil:    timePtr(time.Now().Add(-time.Minute)),
		BlockCount:     2,
	}

	err := svc.Gate(context.Background(), user, time.Now())
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Nil(t, user.LockedUntil)
	assert.Zero(t, user.FailedAttempts)
	// The completed lock cycles still count toward permanent escalation.
	assert.Equal(t, 2, user.BlockCount)
}

func TestGateCleanAccount(t *testing.T) {
	svc := newLockoutService(&mockLockoutStore{})
	user := &models.User{ID: "u1"}

	err := svc.Gate(context.Background(), user, time.Now())
	assert.NoError(t, err)
}

func TestRegisterFailureBelowThreshold(t *testing.T) {
	store := &mockLockoutStore{
		recordFailedFunc: func(ctx context.Context, userID string) (int, error) {
			return 3, nil
		},
		applyTempLockFunc: func(ctx context.Context, userID string, until time.Time) (int, error) {
			t.Fatal("no lock expected below the threshold")
			return 0, nil
		},
	}
	svc := newLockoutService(store)

	err := svc.RegisterFailure(context.Background(), "u1", time.Now())
	assert.NoError(t, err)
}

func TestRegisterFailureFourthAttemptLocks(t *testing.T) {
	now := time.Now()
	var lockedUntil time.Time
	store := &mockLockoutStore{
		recordFailedFunc: func(ctx context.Context, userID string) (int, error) {
			return 4, nil
		},
		applyTempLockFunc: func(ctx context.Context, userID string, until time.Time) (int, error) {
			lockedUntil = until
			return 1, nil
		},
	}
	svc := newLockoutService(store)

	err := svc.RegisterFailure(context.Background(), "u1", now)
	assert.ErrorIs(t, err, models.ErrAccountLockedTemporary)
	assert.Equal(t, now.Add(5*time.Minute), lockedUntil)

	var locked *models.AccountLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, lockedUntil, locked.Until)
}

func TestRegisterFailureThirdLockEscalatesToPermanent(t *testing.T) {
	permanentApplied := false
	store := &mockLockoutStore{
		recordFailedFunc: func(ctx context.Context, userID string) (int, error) {
			return 4, nil
		},
		applyTempLockFunc: func(ctx context.Context, userID string, until time.Time) (int, error) {
			return 3, nil
		},
		applyPermBlockFunc: func(ctx context.Context, userID string) error {
			permanentApplied = true
			return nil
		},
	}
	svc := newLockoutService(store)

	err := svc.RegisterFailure(context.Background(), "u1", time.Now())
	assert.ErrorIs(t, err, models.ErrAccountLockedPermanent)
	assert.True(t, permanentApplied)
}

func TestRegisterSuccessResetsEverything(t *testing.T) {
	resetCalled := false
	store := &mockLockoutStore{
		clearOnSuccessFunc: func(ctx context.Context, userID string) error {
			resetCalled = true
			assert.Equal(t, "u1", userID)
			return nil
		},
	}
	svc := newLockoutService(store)

	require.NoError(t, svc.RegisterSuccess(context.Background(), "u1"))
	assert.True(t, resetCalled)
}
