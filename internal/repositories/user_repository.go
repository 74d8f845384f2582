package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/models"
)

const userColumns = `id, name, last_name, username, email, password_hash, email_verified, role,
	failed_attempts, locked_until, block_count, permanently_blocked, current_session,
	created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Name, &u.LastName, &u.Username, &u.Email, &u.PasswordHash,
		&u.EmailVerified, &u.Role,
		&u.FailedAttempts, &u.LockedUntil, &u.BlockCount, &u.PermanentlyBlocked,
		&u.CurrentSession,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, name, last_name, username, email, password_hash, email_verified, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Name, user.LastName, user.Username, user.Email,
		user.PasswordHash, user.EmailVerified, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	return database.MapPostgresError(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, username))
}

// MarkEmailVerified flips the verification flag after the link token checks out.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	query := `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordFailedAttempt bumps the failure counter in a single atomic
// statement and returns the new value, so concurrent bad logins cannot
// both read the same stale count.
func (r *UserRepository) RecordFailedAttempt(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts`

	var attempts int
	if err := r.db.Pool.QueryRow(ctx, query, userID).Scan(&attempts); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

// ApplyTemporaryLock starts a lock window and counts the completed cycle.
// Returns the resulting block count so the caller can decide on escalation.
func (r *UserRepository) ApplyTemporaryLock(ctx context.Context, userID string, until time.Time) (int, error) {
	query := `
		UPDATE users
		SET locked_until = $2, failed_attempts = 0, block_count = block_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING block_count`

	var blocks int
	if err := r.db.Pool.QueryRow(ctx, query, userID, until).Scan(&blocks); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return blocks, nil
}

func (r *UserRepository) ApplyPermanentBlock(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET permanently_blocked = TRUE, locked_until = NULL, failed_attempts = 0, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

// ClearExpiredLock lazily removes a temporary lock whose window has
// passed. Block count is intentionally preserved.
func (r *UserRepository) ClearExpiredLock(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET locked_until = NULL, failed_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND locked_until IS NOT NULL AND locked_until <= NOW()`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

// ClearLockoutOnSuccess wipes all lockout state after a fully completed
// login. This is the only path that resets block_count.
func (r *UserRepository) ClearLockoutOnSuccess(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL, block_count = 0, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, userID)
	return database.MapPostgresError(err)
}

func (r *UserRepository) SetCurrentSession(ctx context.Context, userID string, sessionID *string) error {
	query := `UPDATE users SET current_session = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, userID, sessionID)
	return database.MapPostgresError(err)
}

// UpdatePassword sets a new hash and lifts every block, including a
// permanent one. Password reset is the recovery path for blocked accounts.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, failed_attempts = 0, locked_until = NULL,
		    block_count = 0, permanently_blocked = FALSE, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CurrentSessionID satisfies auth.SessionChecker.
func (r *UserRepository) CurrentSessionID(ctx context.Context, userID string) (*string, error) {
	var current *string
	err := r.db.Pool.QueryRow(ctx, `SELECT current_session FROM users WHERE id = $1`, userID).Scan(&current)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return current, nil
}

// RoleByID satisfies auth.RoleChecker.
func (r *UserRepository) RoleByID(ctx context.Context, userID string) (string, error) {
	var role string
	err := r.db.Pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		return "", database.MapPostgresError(err)
	}
	return role, nil
}
