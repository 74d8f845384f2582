package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/models"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

// NotificationStoreInterface is the dashboard-notification surface.
type NotificationStoreInterface interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]*models.OrderNote, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, noteID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// NotificationHandler serves the dashboard notification bell.
type NotificationHandler struct {
	notes NotificationStoreInterface
}

func NewNotificationHandler(notes NotificationStoreInterface) *NotificationHandler {
	return &NotificationHandler{notes: notes}
}

type NoteResponse struct {
	ID        string    `json:"id"`
	RefID     string    `json:"ref_id"`
	RefType   string    `json:"ref_type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns the caller's most recent notes. ?limit= caps the page,
// defaulting to 20.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	notes, err := h.notes.ListForUser(r.Context(), claims.UserID, limit)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list notifications")
		return
	}

	out := make([]NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, NoteResponse{
			ID:        n.ID,
			RefID:     n.RefID,
			RefType:   n.RefType,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

// UnreadCount drives the notification badge.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	count, err := h.notes.CountUnread(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to count notifications")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead marks a single note read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	noteID := chi.URLParam(r, "id")
	if noteID == "" {
		pkghttp.WriteBadRequest(w, "Missing notification id")
		return
	}

	if err := h.notes.MarkRead(r.Context(), claims.UserID, noteID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Notification not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to update notification")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Notification marked read"})
}

// MarkAllRead clears the badge.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.notes.MarkAllRead(r.Context(), claims.UserID); err != nil {
		pkghttp.WriteInternalError(w, "Failed to update notifications")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "All notifications marked read"})
}
