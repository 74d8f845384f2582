package models

import "time"

// Reservation statuses. Live statuses block a lane from being offered again.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationPaid      = "paid"
	ReservationCompleted = "completed"
	ReservationCancelled = "cancelled"
)

// LiveReservationStatuses are the statuses that participate in lane
// conflict checks.
var LiveReservationStatuses = []string{ReservationPending, ReservationConfirmed, ReservationPaid}

func IsValidReservationStatus(s string) bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationPaid,
		ReservationCompleted, ReservationCancelled:
		return true
	}
	return false
}

type Reservation struct {
	ID               string
	UserID           string
	PackageID        *string
	StartTime        time.Time
	EndTime          time.Time
	NumberOfPeople   int
	TotalPriceCents  int
	Status           string
	PaymentMethod    string
	PaymentReference string
	ShoeSizes        string
	CreatedAt        time.Time

	// Joined display fields, populated by list/detail queries.
	UserName    string
	UserLast    string
	UserEmail   string
	LaneNumbers []int
}

// ReservationLane is the [booked_from, booked_until) interval a reservation
// holds on one lane. Two live reservations must never hold overlapping
// intervals on the same lane.
type ReservationLane struct {
	ReservationID string
	LaneID        string
	BookedFrom    time.Time
	BookedUntil   time.Time
}
