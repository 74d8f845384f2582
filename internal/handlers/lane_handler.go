package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pittsbowling/api/internal/models"
	"github.com/pittsbowling/api/internal/services"
	pkghttp "github.com/pittsbowling/api/pkg/http"
)

// LaneStoreInterface is the admin CRUD surface for lanes.
type LaneStoreInterface interface {
	Create(ctx context.Context, lane *models.Lane) error
	GetByID(ctx context.Context, id string) (*models.Lane, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Lane, error)
	Update(ctx context.Context, lane *models.Lane) error
	Deactivate(ctx context.Context, id string) error
}

// AvailabilityInterface answers lane availability questions.
type AvailabilityInterface interface {
	AvailableLanes(ctx context.Context, from, until time.Time) ([]*models.Lane, error)
	DayGrid(ctx context.Context, day time.Time, openHour, closeHour int) ([]services.HourSlot, error)
}

// LaneHandler serves public availability queries and admin lane CRUD.
type LaneHandler struct {
	lanes        LaneStoreInterface
	availability AvailabilityInterface

	openHour  int
	closeHour int
}

func NewLaneHandler(lanes LaneStoreInterface, availability AvailabilityInterface, openHour, closeHour int) *LaneHandler {
	return &LaneHandler{
		lanes:        lanes,
		availability: availability,
		openHour:     openHour,
		closeHour:    closeHour,
	}
}

type LaneRequest struct {
	LaneNumber        int    `json:"lane_number" validate:"required,gte=1"`
	Name              string `json:"name" validate:"required,min=1,max=100"`
	Description       string `json:"description" validate:"max=500"`
	MaxPlayers        int    `json:"max_players" validate:"required,gte=1,lte=12"`
	PricePerHourCents int    `json:"price_per_hour_cents" validate:"gte=0"`
	Active            *bool  `json:"active"`
}

type LaneResponse struct {
	ID                string `json:"id"`
	LaneNumber        int    `json:"lane_number"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	MaxPlayers        int    `json:"max_players"`
	PricePerHourCents int    `json:"price_per_hour_cents"`
	Active            bool   `json:"active"`
}

func toLaneResponse(l *models.Lane) LaneResponse {
	return LaneResponse{
		ID:                l.ID,
		LaneNumber:        l.LaneNumber,
		Name:              l.Name,
		Description:       l.Description,
		MaxPlayers:        l.MaxPlayers,
		PricePerHourCents: l.PricePerHourCents,
		Active:            l.Active,
	}
}

func toLaneResponses(lanes []*models.Lane) []LaneResponse {
	out := make([]LaneResponse, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, toLaneResponse(l))
	}
	return out
}

// Availability lists the lanes free for a requested window. Query
// params: from and until as RFC 3339 timestamps.
func (h *LaneHandler) Availability(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "from must be an RFC 3339 timestamp")
		return
	}
	until, err := time.Parse(time.RFC3339, r.URL.Query().Get("until"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "until must be an RFC 3339 timestamp")
		return
	}

	lanes, err := h.availability.AvailableLanes(r.Context(), from, until)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "until must be after from")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to check availability")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"from":  from,
		"until": until,
		"lanes": toLaneResponses(lanes),
	})
}

// DayGrid returns the hour-by-hour free-lane count for one day. Query
// param: date as YYYY-MM-DD.
func (h *LaneHandler) DayGrid(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "date must be formatted YYYY-MM-DD")
		return
	}

	slots, err := h.availability.DayGrid(r.Context(), day, h.openHour, h.closeHour)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to compute day grid")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format("2006-01-02"),
		"slots": slots,
	})
}

// List returns all lanes. Public callers see active lanes only; the
// admin variant passes ?all=true.
func (h *LaneHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	lanes, err := h.lanes.List(r.Context(), activeOnly)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to list lanes")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"lanes": toLaneResponses(lanes)})
}

// Create adds a lane. Admin only.
func (h *LaneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req LaneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	lane := &models.Lane{
		LaneNumber:        req.LaneNumber,
		Name:              req.Name,
		Description:       req.Description,
		MaxPlayers:        req.MaxPlayers,
		PricePerHourCents: req.PricePerHourCents,
		Active:            true,
	}
	if req.Active != nil {
		lane.Active = *req.Active
	}

	if err := h.lanes.Create(r.Context(), lane); err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "A lane with that number already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to create lane")
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toLaneResponse(lane))
}

// Update replaces a lane's attributes. Admin only.
func (h *LaneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req LaneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	lane, err := h.lanes.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Lane not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to load lane")
		return
	}

	lane.LaneNumber = req.LaneNumber
	lane.Name = req.Name
	lane.Description = req.Description
	lane.MaxPlayers = req.MaxPlayers
	lane.PricePerHourCents = req.PricePerHourCents
	if req.Active != nil {
		lane.Active = *req.Active
	}

	if err := h.lanes.Update(r.Context(), lane); err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "A lane with that number already exists")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to update lane")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toLaneResponse(lane))
}

// Deactivate retires a lane from future availability. Admin only.
func (h *LaneHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.lanes.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Lane not found")
			return
		}
		pkghttp.WriteInternalError(w, "Failed to deactivate lane")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Lane deactivated"})
}
