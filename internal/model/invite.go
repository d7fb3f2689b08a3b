package model

import "time"

// RoomInvite is a time-boxed join link for a room. Tokens are write-once;
// only the uses counter changes after creation.
type RoomInvite struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	CreatedBy int64     `json:"created_by"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   *int64    `json:"max_uses"`
	Uses      int64     `json:"uses"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the invite is past its expiry at the given instant.
func (i *RoomInvite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
