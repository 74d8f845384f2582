package models

import "time"

// Lane is static reference data, admin-managed.
type Lane struct {
	ID                string
	LaneNumber        int
	Name              string
	Description       string
	MaxPlayers        int
	PricePerHourCents int
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
