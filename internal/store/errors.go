package store

import "errors"

var (
	// ErrNotFound is returned by flows that must distinguish a missing row
	// from an empty result. Plain getters return (nil, nil) instead.
	ErrNotFound = errors.New("not found")

	// ErrInviteExpired is returned when redeeming an invite past its expiry.
	// Expiry always wins, regardless of remaining uses.
	ErrInviteExpired = errors.New("invite expired")
)
