package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pittsbowling/api/internal/auth"
	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/services"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

// ReservationServiceInterface defines the booking operations the handler needs
type ReservationServiceInterface interface {
	Checkout(ctx context.Context, input services.CheckoutInput) (*models.Reservation, error)
	Get(ctx context.Context, id, callerID string, isAdmin bool) (*models.Reservation, error)
	List(ctx context.Context, status string) ([]*models.Reservation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Reservation, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Reservation, error)
	Delete(ctx context.Context, id string) error
	PendingCount(ctx context.Context) (int, error)
}

// ReservationHandler serves checkout and the reservation dashboards.
type ReservationHandler struct {
	service ReservationServiceInterface
}

func NewReservationHandler(service ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: service}
}

type CheckoutRequest struct {
	StartTime        string `json:"start_time" validate:"required"`
	EndTime          string `json:"end_time" validate:"required"`
	NumberOfPeople   int    `json:"number_of_people" validate:"required,gte=1,lte=60"`
	PaymentMethod    string `json:"payment_method" validate:"required,oneof=pago_movil zelle cash card"`
	PaymentReference string `json:"payment_reference" validate:"max=100"`
	ShoeSizes        string `json:"shoe_sizes" validate:"max=200"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed paid completed cancelled"`
}

type ReservationResponse struct {
	ID               string    `json:"id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	NumberOfPeople   int       `json:"number_of_people"`
	TotalPriceCents  int       `json:"total_price_cents"`
	Status           string    `json:"status"`
	PaymentMethod    string    `json:"payment_method"`
	PaymentReference string    `json:"payment_reference,omitempty"`
	ShoeSizes        string    `json:"shoe_sizes,omitempty"`
	LaneNumbers      []int     `json:"lane_numbers"`
	CreatedAt        time.Time `json:"created_at"`

	// Populated on admin views only.
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

func toReservationResponse(res *models.Reservation, admin bool) ReservationResponse {
	out := ReservationResponse{
		ID:               res.ID,
		StartTime:        res.StartTime,
		EndTime:          res.EndTime,
		NumberOfPeople:   res.NumberOfPeople,
		TotalPriceCents:  res.TotalPriceCents,
		Status:           res.Status,
		PaymentMethod:    res.PaymentMethod,
		PaymentReference: res.PaymentReference,
		ShoeSizes:        res.ShoeSizes,
		LaneNumbers:      res.LaneNumbers,
		CreatedAt:        res.CreatedAt,
	}
	if out.LaneNumbers == nil {
		out.LaneNumbers = []int{}
	}
	if admin {
		name := res.UserName
		if res.UserLast != "" {
			name += " " + res.UserLast
		}
		out.CustomerName = name
		out.CustomerEmail = res.UserEmail
	}
	return out
}

func toReservationResponses(list []*models.Reservation, admin bool) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationResponse(res, admin))
	}
	return out
}

// Checkout books lanes for the authenticated user.
func (h *ReservationHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		pkghttp.WriteBadRequest(w, "start_time must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		pkghttp.WriteBadRequest(w, "end_time must be an RFC 3339 timestamp")
		return
	}

	res, err := h.service.Checkout(r.Context(), services.CheckoutInput{
		UserID:           claims.UserID,
		StartTime:        start,
		EndTime:          end,
		NumberOfPeople:   req.NumberOfPeople,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		ShoeSizes:        req.ShoeSizes,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "The requested time window is invalid")
		case errors.Is(err, models.ErrNoAvailableLane):
			pkghttp.WriteError(w, http.StatusConflict, "no_lane_available", "No lanes are free for that time")
		case errors.Is(err, models.ErrCapacityExceeded):
			pkghttp.WriteError(w, http.StatusConflict, "capacity_exceeded", "Not enough free lanes for a party that size")
		case errors.Is(err, models.ErrLaneConflict):
			pkghttp.WriteError(w, http.StatusConflict, "lane_conflict", "A lane was booked by someone else just now. Pick another time.")
		default:
			pkghttp.WriteInternalError(w, "Failed to complete checkout")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toReservationResponse(res, false))
}

// Mine lists the caller's reservations.
func (h *ReservationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	list, err := h.service.ListForUser(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list reservations")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"reservations": toReservationResponses(list, false),
	})
}

// Get returns one reservation, owner or admin only.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	res, err := h.service.Get(r.Context(), id, claims.UserID, false)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Reservation not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Not your reservation")
		default:
			pkghttp.WriteInternalError(w, "Failed to load reservation")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toReservationResponse(res, false))
}

// AdminList returns every reservation, optionally filtered by ?status=.
func (h *ReservationHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	list, err := h.service.List(r.Context(), status)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Unknown reservation status")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to list reservations")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"reservations": toReservationResponses(list, true),
	})
}

// AdminPendingCount feeds the "new reservations" badge on the admin
// dashboard.
func (h *ReservationHandler) AdminPendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.PendingCount(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to count reservations")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]int{"pending": count})
}

// AdminGet returns full detail including customer identity.
func (h *ReservationHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.Get(r.Context(), id, "", true)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Reservation not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load reservation")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toReservationResponse(res, true))
}

// AdminUpdateStatus moves a reservation through the workflow.
func (h *ReservationHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	res, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Reservation not found")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Unknown reservation status")
		default:
			pkghttp.WriteInternalError(w, "Failed to update reservation")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toReservationResponse(res, true))
}

// AdminDelete removes a reservation outright.
func (h *ReservationHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Reservation not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to delete reservation")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Reservation deleted"})
}
