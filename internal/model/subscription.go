package model

import "time"

const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusCanceled = "canceled"
)

// Subscription is a recurring expense. RoomID nil means personal; a
// subscription belongs to exactly one user or one room's shared pool,
// never both.
type Subscription struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	RoomID          *int64    `json:"room_id"`
	Name            string    `json:"name"`
	Amount          float64   `json:"amount"`
	BillingCycle    string    `json:"billing_cycle"`
	NextBillingDate time.Time `json:"next_billing_date"`
	Category        string    `json:"category"`
	Status          string    `json:"status"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ValidStatus reports whether s is a recognized subscription status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusPaused, StatusCanceled:
		return true
	}
	return false
}

// Categories is the fixed set of subscription categories, in display order.
var Categories = []string{"entertainment", "utilities", "software", "fitness", "food", "other"}

// ValidCategory reports whether c is a recognized category.
func ValidCategory(c string) bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}
