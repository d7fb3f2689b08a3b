// Package access holds the authorization predicates for rooms and
// subscriptions. Every handler that reads or mutates a resource goes through
// these functions; the rules are never re-derived inline.
package access

import "github.com/rcavanagh/subledger/internal/model"

// CanAccessRoom reports whether the user may view a room and its shared
// subscriptions: the owner always can, members can. membership is the user's
// row in the room (nil if none).
func CanAccessRoom(userID int64, room *model.Room, membership *model.RoomMember) bool {
	if room == nil {
		return false
	}
	if room.OwnerID == userID {
		return true
	}
	return membership != nil && membership.RoomID == room.ID && membership.UserID == userID
}

// CanMutateRoom reports whether the user may administer the room: delete it,
// generate invites, or remove members. Only the owner may; members have
// read/contribute rights to the room's subscriptions, never administration.
func CanMutateRoom(userID int64, room *model.Room) bool {
	return room != nil && room.OwnerID == userID
}

// CanMutateSubscription reports whether the user may edit or delete a
// subscription. Mutation is scoped to the creator, including for room-shared
// rows; other room members see the row but cannot change it.
func CanMutateSubscription(userID int64, sub *model.Subscription) bool {
	return sub != nil && sub.UserID == userID
}
