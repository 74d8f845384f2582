package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pittsbowling/api/internal/metrics"
	"github.com/pittsbowling/api/internal/models"
)

type reservationStore interface {
	CreateWithLanes(ctx context.Context, res *models.Reservation, laneIDs []string, from, until time.Time) error
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context, status string) ([]*models.Reservation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Reservation, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, status string) (int, error)
}

type noteStore interface {
	Create(ctx context.Context, note *models.OrderNote) error
}

// CheckoutInput is the validated payload for booking lanes.
type CheckoutInput struct {
	UserID           string
	StartTime        time.Time
	EndTime          time.Time
	NumberOfPeople   int
	PaymentMethod    string
	PaymentReference string
	ShoeSizes        string
}

// ReservationService turns a requested window and party size into a
// committed reservation, and drives the admin status workflow.
type ReservationService struct {
	reservations reservationStore
	notes        noteStore
	availability *AvailabilityService
	notifier     Notifier
	logger       *slog.Logger
}

func NewReservationService(reservations reservationStore, notes noteStore, availability *AvailabilityService, notifier Notifier, log *slog.Logger) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		notes:        notes,
		availability: availability,
		notifier:     notifier,
		logger:       log,
	}
}

// Checkout allocates lanes for the window and writes the reservation.
// The lane pick outside the transaction is advisory; the repository
// re-checks each lane inside the transaction, so a concurrent checkout
// for the same lane surfaces as ErrLaneConflict rather than a double
// booking.
func (s *ReservationService) Checkout(ctx context.Context, input CheckoutInput) (*models.Reservation, error) {
	if !input.EndTime.After(input.StartTime) || input.NumberOfPeople < 1 {
		return nil, models.ErrBadRequest
	}
	if input.StartTime.Before(time.Now()) {
		return nil, models.ErrBadRequest
	}

	lanes, err := s.availability.AllocateLanes(ctx, input.StartTime, input.EndTime, input.NumberOfPeople)
	if err != nil {
		return nil, err
	}

	hours := input.EndTime.Sub(input.StartTime).Hours()
	total := 0
	laneIDs := make([]string, 0, len(lanes))
	laneNumbers := make([]int, 0, len(lanes))
	for _, lane := range lanes {
		total += int(math.Ceil(float64(lane.PricePerHourCents) * hours))
		laneIDs = append(laneIDs, lane.ID)
		laneNumbers = append(laneNumbers, lane.LaneNumber)
	}

	res := &models.Reservation{
		UserID:           input.UserID,
		StartTime:        input.StartTime,
		EndTime:          input.EndTime,
		NumberOfPeople:   input.NumberOfPeople,
		TotalPriceCents:  total,
		Status:           models.ReservationPending,
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: input.PaymentReference,
		ShoeSizes:        input.ShoeSizes,
		LaneNumbers:      laneNumbers,
	}

	if err := s.reservations.CreateWithLanes(ctx, res, laneIDs, input.StartTime, input.EndTime); err != nil {
		if errors.Is(err, models.ErrLaneConflict) {
			metrics.LaneConflicts.Inc()
		}
		return nil, err
	}

	metrics.ReservationsCreated.Inc()
	s.logger.Info("reservation created",
		slog.String("reservation_id", res.ID),
		slog.String("user_id", input.UserID),
		slog.Int("lanes", len(laneIDs)),
		slog.Int("people", input.NumberOfPeople))

	note := &models.OrderNote{
		UserID:  input.UserID,
		RefID:   res.ID,
		RefType: "reservation",
		Message: "We received your reservation and will confirm it once payment is reviewed.",
	}
	if err := s.notes.Create(ctx, note); err != nil {
		s.logger.Error("failed to create reservation note",
			slog.String("reservation_id", res.ID),
			slog.Any("error", err))
	}

	return res, nil
}

// Get returns one reservation. Non-admin callers only see their own.
func (s *ReservationService) Get(ctx context.Context, id, callerID string, isAdmin bool) (*models.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && res.UserID != callerID {
		return nil, models.ErrForbidden
	}
	return res, nil
}

// List returns all reservations, optionally filtered by status. Admin only.
func (s *ReservationService) List(ctx context.Context, status string) ([]*models.Reservation, error) {
	if status != "" && !models.IsValidReservationStatus(status) {
		return nil, models.ErrBadRequest
	}
	return s.reservations.List(ctx, status)
}

// ListForUser returns the caller's reservation history.
func (s *ReservationService) ListForUser(ctx context.Context, userID string) ([]*models.Reservation, error) {
	return s.reservations.ListForUser(ctx, userID)
}

// PendingCount feeds the admin dashboard badge.
func (s *ReservationService) PendingCount(ctx context.Context) (int, error) {
	return s.reservations.CountByStatus(ctx, models.ReservationPending)
}

var statusMessages = map[string]string{
	models.ReservationConfirmed: "Your reservation is confirmed. See you at the lanes!",
	models.ReservationPaid:      "Payment received. Your reservation is fully paid.",
	models.ReservationCompleted: "Thanks for bowling with us! We hope to see you again.",
	models.ReservationCancelled: "Your reservation was cancelled. Contact us if this is unexpected.",
}

// UpdateStatus moves a reservation through its workflow and notifies the
// owner with a dashboard note and an email.
func (s *ReservationService) UpdateStatus(ctx context.Context, id, status string) (*models.Reservation, error) {
	if !models.IsValidReservationStatus(status) {
		return nil, models.ErrBadRequest
	}

	if err := s.reservations.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	message, ok := statusMessages[status]
	if !ok {
		message = fmt.Sprintf("Your reservation status changed to %s.", status)
	}

	note := &models.OrderNote{
		UserID:  res.UserID,
		RefID:   res.ID,
		RefType: "reservation",
		Message: message,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		s.logger.Error("failed to create status note",
			slog.String("reservation_id", res.ID),
			slog.Any("error", err))
	}

	if err := s.notifier.SendReservationUpdate(ctx, res.UserEmail, res.UserName, message); err != nil {
		s.logger.Error("failed to send status email",
			slog.String("reservation_id", res.ID),
			slog.Any("error", err))
	}

	return res, nil
}

// Delete removes a reservation outright. Admin only; cancelling is the
// normal path, deletion is for mistakes and tests.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	return s.reservations.Delete(ctx, id)
}
