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
)

type mockReservationStore struct {
	createFunc       func(ctx context.Context, res *models.Reservation, laneIDs []string, from, until time.Time) error
	getByIDFunc      func(ctx context.Context, id string) (*models.Reservation, error)
	listFunc         func(ctx context.Context, status string) ([]*models.Reservation, error)
	listForUserFunc  func(ctx context.Context, userID string) ([]*models.Reservation, error)
	updateStatusFunc func(ctx context.Context, id, status string) error
	deleteFunc       func(ctx context.Context, id string) error
	countFunc        func(ctx context.Context, status string) (int, error)
}

func (m *mockReservationStore) CreateWithLanes(ctx context.Context, res *models.Reservation, laneIDs []string, from, until time.Time) error {
	return m.createFunc(ctx, res, laneIDs, from, until)
}

func (m *mockReservationStore) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockReservationStore) List(ctx context.Context, status string) ([]*models.Reservation, error) {
	return m.listFunc(ctx, status)
}

func (m *mockReservationStore) ListForUser(ctx context.Context, userID string) ([]*models.Reservation, error) {
	return m.listForUserFunc(ctx, userID)
}

func (m *mockReservationStore) UpdateStatus(ctx context.Context, id, status string) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockReservationStore) Delete(ctx context.Context, id string) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockReservationStore) CountByStatus(ctx context.Context, status string) (int, error) {
	return m.countFunc(ctx, status)
}

type mockNoteStore struct {
	notes []*models.OrderNote
}

func (m *mockNoteStore) Create(ctx context.Context, note *models.OrderNote) error {
	m.notes = append(m.notes, note)
	return nil
}

func newReservationService(res *mockReservationStore, notes *mockNoteStore, lanes *mockLaneStore, notifier Notifier) *ReservationService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReservationService(res, notes, NewAvailabilityService(lanes), notifier, log)
}

func futureWindow(hours int) (time.Time, time.Time) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	return start, start.Add(time.Duration(hours) * time.Hour)
}

func TestCheckoutCommitsReservationWithLanes(t *testing.T) {
	start, end := futureWindow(2)

	lanes := &mockLaneStore{
		findAvailableFunc: func(ctx context.Context, from, until time.Time) ([]*models.Lane, error) {
			l := lane(1, 6)
			l.PricePerHourCents = 1500
			return []*models.Lane{l}, nil
		},
	}

	var capturedLanes []string
	resStore := &mockReservationStore{
		createFunc: func(ctx context.Context, res *models.Reservation, laneIDs []string, from, until time.Time) error {
			res.ID = "res-1"
			capturedLanes = laneIDs
			assert.Equal(t, start, from)
			assert.Equal(t, end, until)
			return nil
		},
	}
	notes := &mockNoteStore{}
	svc := newReservationService(resStore, notes, lanes, &mockNotifier{})

	res, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID:         "u1",
		StartTime:      start,
		EndTime:        end,
		NumberOfPeople: 4,
		PaymentMethod:  "pago_movil",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReservationPending, res.Status)
	assert.Equal(t, 3000, res.TotalPriceCents) // 2 hours at 1500/hour
	assert.Len(t, capturedLanes, 1)

	require.Len(t, notes.notes, 1)
	assert.Equal(t, "res-1", notes.notes[0].RefID)
	assert.Equal(t, "reservation", notes.notes[0].RefType)
}

func TestCheckoutRejectsPastWindow(t *testing.T) {
	svc := newReservationService(&mockReservationStore{}, &mockNoteStore{}, &mockLaneStore{}, &mockNotifier{})

	start := time.Now().Add(-2 * time.Hour)
	_, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID:         "u1",
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		NumberOfPeople: 2,
	})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestCheckoutSurfacesLaneConflict(t *testing.T) {
	start, end := futureWindow(2)

	lanes := &mockLaneStore{
		findAvailableFunc: func(ctx context.Context, from, until time.Time) ([]*models.Lane, error) {
			return []*models.Lane{lane(1, 6)}, nil
		},
	}
	resStore := &mockReservationStore{
		createFunc: func(ctx context.Context, res *models.Reservation, laneIDs []string, from, until time.Time) error {
			return models.ErrLaneConflict
		},
	}
	svc := newReservationService(resStore, &mockNoteStore{}, lanes, &mockNotifier{})

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID: "u1", StartTime: start, EndTime: end, NumberOfPeople: 2,
	})
	assert.ErrorIs(t, err, models.ErrLaneConflict)
}

func TestCheckoutNoLanesFree(t *testing.T) {
	start, end := futureWindow(2)
	lanes := &mockLaneStore{
		findAvailableFunc: func(ctx context.Context, from, until time.Time) ([]*models.Lane, error) {
			return nil, nil
		},
	}
	svc := newReservationService(&mockReservationStore{}, &mockNoteStore{}, lanes, &mockNotifier{})

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID: "u1", StartTime: start, EndTime: end, NumberOfPeople: 2,
	})
	assert.ErrorIs(t, err, models.ErrNoAvailableLane)
}

func TestGetEnforcesOwnership(t *testing.T) {
	resStore := &mockReservationStore{
		getByIDFunc: func(ctx context.Context, id string) (*models.Reservation, error) {
			return &models.Reservation{ID: id, UserID: "owner"}, nil
		},
	}
	svc := newReservationService(resStore, &mockNoteStore{}, &mockLaneStore{}, &mockNotifier{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "res-1", "someone-else", false)
	assert.ErrorIs(t, err, models.ErrForbidden)

	res, err := svc.Get(ctx, "res-1", "owner", false)
	require.NoError(t, err)
	assert.Equal(t, "res-1", res.ID)

	res, err = svc.Get(ctx, "res-1", "someone-else", true)
	require.NoError(t, err)
	assert.Equal(t, "res-1", res.ID)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc := newReservationService(&mockReservationStore{}, &mockNoteStore{}, &mockLaneStore{}, &mockNotifier{})

	_, err := svc.List(context.Background(), "definitely-not-a-status")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUpdateStatusNotifiesOwner(t *testing.T) {
	updated := ""
	resStore := &mockReservationStore{
		updateStatusFunc: func(ctx context.Context, id, status string) error {
			updated = status
			return nil
		},
		getByIDFunc: func(ctx context.Context, id string) (*models.Reservation, error) {
			return &models.Reservation{
				ID: id, UserID: "u1", Status: models.ReservationConfirmed,
				UserName: "Alice", UserEmail: "alice@example.com",
			}, nil
		},
	}
	notes := &mockNoteStore{}
	notifier := &mockNotifier{}
	svc := newReservationService(resStore, notes, &mockLaneStore{}, notifier)

	res, err := svc.UpdateStatus(context.Background(), "res-1", models.ReservationConfirmed)
	require.NoError(t, err)

	assert.Equal(t, models.ReservationConfirmed, updated)
	assert.Equal(t, "u1", res.UserID)
	require.Len(t, notes.notes, 1)
	assert.Contains(t, notes.notes[0].Message, "confirmed")
	require.Len(t, notifier.sentUpdates, 1)
}

func TestUpdateStatusRejectsInvalidStatus(t *testing.T) {
	svc := newReservationService(&mockReservationStore{}, &mockNoteStore{}, &mockLaneStore{}, &mockNotifier{})

	_, err := svc.UpdateStatus(context.Background(), "res-1", "shipped")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}
