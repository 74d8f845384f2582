package models

import "time"

// OrderNote is a dashboard notification tied to a reservation or order.
// Clients poll the unread count to drive the notification bell.
type OrderNote struct {
	ID        string
	UserID    string
	RefID     string
	RefType   string // "reservation" or "order"
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
