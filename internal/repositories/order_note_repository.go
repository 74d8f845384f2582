package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pittsbowling/api/internal/database"
	"github.com/pittsbowling/api/internal/models"
)

type OrderNoteRepository struct {
	db *database.DB
}

func NewOrderNoteRepository(db *database.DB) *OrderNoteRepository {
	return &OrderNoteRepository{db: db}
}

func (r *OrderNoteRepository) Create(ctx context.Context, note *models.OrderNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}

	query := `
		INSERT INTO order_notes (id, user_id, ref_id, ref_type, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.Pool.QueryRow(ctx, query,
		note.ID, note.UserID, note.RefID, note.RefType, note.Message,
	).Scan(&note.CreatedAt)

	return database.MapPostgresError(err)
}

func (r *OrderNoteRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*models.OrderNote, error) {
	query := `
		SELECT id, user_id, ref_id, ref_type, message, is_read, created_at
		FROM order_notes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	var notes []*models.OrderNote
	for rows.Next() {
		var n models.OrderNote
		if err := rows.Scan(&n.ID, &n.UserID, &n.RefID, &n.RefType, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, database.MapPostgresError(err)
		}
		notes = append(notes, &n)
	}
	return notes, database.MapPostgresError(rows.Err())
}

func (r *OrderNoteRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_notes WHERE user_id = $1 AND is_read = FALSE`, userID,
	).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// MarkRead is scoped to the owner so one user cannot touch another's notes.
func (r *OrderNoteRepository) MarkRead(ctx context.Context, userID, noteID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE order_notes SET is_read = TRUE WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *OrderNoteRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE order_notes SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	return database.MapPostgresError(err)
}
