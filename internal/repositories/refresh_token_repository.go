package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/models"
)

type RefreshTokenRepository struct {
	db *database.DB
}

func NewRefreshTokenRepository(db *database.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Insert(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, session_id, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.Pool.QueryRow(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.SessionID,
		token.ExpiresAt, token.IP, token.UserAgent,
	).Scan(&token.CreatedAt)

	return database.MapPostgresError(err)
}

// FindByUserAndHash looks up a presented refresh token by its hash. A
// models.ErrNotFound here is the reuse-detection signal: the caller must
// treat an unknown hash as a stolen or replayed token.
func (r *RefreshTokenRepository) FindByUserAndHash(ctx context.Context, userID, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, session_id, expires_at, revoked,
		       COALESCE(ip, ''), COALESCE(user_agent, ''), created_at
		FROM refresh_tokens
		WHERE user_id = $1 AND token_hash = $2`

	var t models.RefreshToken
	err := r.db.Pool.QueryRow(ctx, query, userID, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.SessionID, &t.ExpiresAt, &t.Revoked,
		&t.IP, &t.UserAgent, &t.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &t, nil
}

// RevokeAllForUser marks every live token dead. Runs on login (old
// sessions are displaced), on password reset, and on reuse detection.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`
	tag, err := r.db.Pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// RevokeByUserAndHash marks the single row matching the presented token
// dead. Runs on logout. Reports whether a live row was revoked.
func (r *RefreshTokenRepository) RevokeByUserAndHash(ctx context.Context, userID, tokenHash string) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND token_hash = $2 AND revoked = FALSE`
	tag, err := r.db.Pool.Exec(ctx, query, userID, tokenHash)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired purges rows past their expiry. Called by the background
// sweeper; revoked rows are kept until expiry for audit trails.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
