package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittsbowling/api/internal/models"
)

// fakeNoteStore keeps notes in memory with owner scoping, mirroring the
// repository's behavior.
type fakeNoteStore struct {
	notes []*models.OrderNote
}

func (f *fakeNoteStore) ListForUser(ctx context.Context, userID string, limit int) ([]*models.OrderNote, error) {
	var out []*models.OrderNote
	for _, n := range f.notes {
		if n.UserID == userID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNoteStore) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.notes {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNoteStore) MarkRead(ctx context.Context, userID, noteID string) error {
	for _, n := range f.notes {
		if n.ID == noteID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeNoteStore) MarkAllRead(ctx context.Context, userID string) error {
	for _, n := range f.notes {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func seedNoteStore() *fakeNoteStore {
	return &fakeNoteStore{notes: []*models.OrderNote{
		{ID: "n1", UserID: "u1", RefType: "reservation", Message: "We received your reservation", CreatedAt: time.Now()},
		{ID: "n2", UserID: "u1", RefType: "reservation", Message: "Your reservation is confirmed", CreatedAt: time.Now()},
		{ID: "n3", UserID: "u2", RefType: "reservation", Message: "Someone else's note", CreatedAt: time.Now()},
	}}
}

func TestNotificationListScopedToCaller(t *testing.T) {
	h := NewNotificationHandler(seedNoteStore())

	req := WithAuthContext(NewTestRequest(t, http.MethodGet, "/notifications", nil), "u1", "alice")
	w := httptest.NewRecorder()
	h.List(w, req)

	var body struct {
		Notifications []NoteResponse `json:"notifications"`
	}
	AssertJSONResponse(t, w, http.StatusOK, &body)
	require.Len(t, body.Notifications, 2)
	for _, n := range body.Notifications {
		assert.NotEqual(t, "n3", n.ID)
	}
}

func TestNotificationUnreadCount(t *testing.T) {
	store := seedNoteStore()
	h := NewNotificationHandler(store)

	req := WithAuthContext(NewTestRequest(t, http.MethodGet, "/notifications/unread", nil), "u1", "alice")
	w := httptest.NewRecorder()
	h.UnreadCount(w, req)

	var body map[string]int
	AssertJSONResponse(t, w, http.StatusOK, &body)
	assert.Equal(t, 2, body["unread"])
}

func TestNotificationMarkRead(t *testing.T) {
	store := seedNoteStore()
	h := NewNotificationHandler(store)

	req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/notifications/n1/read", nil), "u1", "alice")
	req = WithURLParam(req, "id", "n1")
	w := httptest.NewRecorder()
	h.MarkRead(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.notes[0].IsRead)
	assert.False(t, store.notes[1].IsRead)
}

func TestNotificationMarkReadRejectsForeignNote(t *testing.T) {
	store := seedNoteStore()
	h := NewNotificationHandler(store)

	// n3 belongs to u2; u1 must not be able to touch it.
	req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/notifications/n3/read", nil), "u1", "alice")
	req = WithURLParam(req, "id", "n3")
	w := httptest.NewRecorder()
	h.MarkRead(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, store.notes[2].IsRead)
}

func TestNotificationMarkAllRead(t *testing.T) {
	store := seedNoteStore()
	h := NewNotificationHandler(store)

	req := WithAuthContext(NewTestRequest(t, http.MethodPost, "/notifications/read-all", nil), "u1", "alice")
	w := httptest.NewRecorder()
	h.MarkAllRead(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, store.notes[0].IsRead)
	assert.True(t, store.notes[1].IsRead)
	assert.False(t, store.notes[2].IsRead)
}

func TestNotificationRequiresAuth(t *testing.T) {
	h := NewNotificationHandler(seedNoteStore())

	w := httptest.NewRecorder()
	h.List(w, NewTestRequest(t, http.MethodGet, "/notifications", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
