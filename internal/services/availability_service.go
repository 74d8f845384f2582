package services

import (
	"context"
	"time"

	"github.com/pittsbowling/api/internal/models"
)

type laneStore interface {
	GetByID(ctx context.Context, id string) (*models.Lane, error)
	FindAvailable(ctx context.Context, from, until time.Time) ([]*models.Lane, error)
	CountActive(ctx context.Context) (int, error)
	BookedWindows(ctx context.Context, from, until time.Time) ([]*models.ReservationLane, error)
}

// HourSlot is one hour of the day grid with the number of lanes still
// free for that hour.
type HourSlot struct {
	Start     time.Time `json:"start"`
	FreeLanes int       `json:"free_lanes"`
}

// AvailabilityService answers "which lanes are free when". Its answers
// are advisory; the checkout transaction re-checks before committing.
type AvailabilityService struct {
	lanes laneStore
}

func NewAvailabilityService(lanes laneStore) *AvailabilityService {
	return &AvailabilityService{lanes: lanes}
}

// AvailableLanes lists the active lanes free for the whole requested
// window. Windows are half-open, so back-to-back bookings on the same
// lane do not collide.
func (s *AvailabilityService) AvailableLanes(ctx context.Context, from, until time.Time) ([]*models.Lane, error) {
	if !until.After(from) {
		return nil, models.ErrBadRequest
	}
	return s.lanes.FindAvailable(ctx, from, until)
}

// AllocateLanes picks the cheapest sufficient set of free lanes for a
// party, walking lanes in lane_number order and accumulating seats until
// the party fits. ErrNoAvailableLane when nothing is free,
// ErrCapacityExceeded when the free lanes cannot seat everyone.
func (s *AvailabilityService) AllocateLanes(ctx context.Context, from, until time.Time, people int) ([]*models.Lane, error) {
	if !until.After(from) || people < 1 {
		return nil, models.ErrBadRequest
	}

	available, err := s.lanes.FindAvailable(ctx, from, until)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, models.ErrNoAvailableLane
	}

	var picked []*models.Lane
	seats := 0
	for _, lane := range available {
		picked = append(picked, lane)
		seats += lane.MaxPlayers
		if seats >= people {
			return picked, nil
		}
	}
	return nil, models.ErrCapacityExceeded
}

// DayGrid computes the busy-hours view for one day: for every opening
// hour, how many lanes are still free. A lane counts as busy for an hour
// if any live booking overlaps that hour.
func (s *AvailabilityService) DayGrid(ctx context.Context, day time.Time, openHour, closeHour int) ([]HourSlot, error) {
	if closeHour <= openHour {
		return nil, models.ErrBadRequest
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), openHour, 0, 0, 0, day.Location())
	dayEnd := time.Date(day.Year(), day.Month(), day.Day(), closeHour, 0, 0, 0, day.Location())

	total, err := s.lanes.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	windows, err := s.lanes.BookedWindows(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	slots := make([]HourSlot, 0, closeHour-openHour)
	for hour := openHour; hour < closeHour; hour++ {
		slotStart := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
		slotEnd := slotStart.Add(time.Hour)

		busy := make(map[string]struct{})
		for _, w := range windows {
			if w.BookedFrom.Before(slotEnd) && w.BookedUntil.After(slotStart) {
				busy[w.LaneID] = struct{}{}
			}
		}

		free := total - len(busy)
		if free < 0 {
			free = 0
		}
		slots = append(slots, HourSlot{Start: slotStart, FreeLanes: free})
	}
	return slots, nil
}
