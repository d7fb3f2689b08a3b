package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rcavanagh/subledger/internal/access"
	"github.com/rcavanagh/subledger/internal/auth"
	"github.com/rcavanagh/subledger/internal/model"
	"github.com/rcavanagh/subledger/internal/store"
	"github.com/rcavanagh/subledger/internal/websocket"
)

type RoomHandler struct {
	roomStore   *store.RoomStore
	inviteStore *store.InviteStore
	hub         *websocket.Hub
	baseURL     string
	logger      *slog.Logger
}

func NewRoomHandler(rs *store.RoomStore, is *store.InviteStore, hub *websocket.Hub, baseURL string, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		roomStore:   rs,
		inviteStore: is,
		hub:         hub,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
	}
}

type roomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rooms, err := h.roomStore.ListForUser(userID)
	if err != nil {
		h.logger.Error("list rooms", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []store.RoomWithCount{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	room, err := h.roomStore.Create(userID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("create room", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateRoom(userID, room) {
		writeError(w, http.StatusForbidden, "only the owner can modify the room")
		return
	}

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	updated, err := h.roomStore.Update(room.ID, req.Name, req.Description)
	if err != nil {
		h.logger.Error("update room", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update room")
		return
	}

	h.publishToRoom(websocket.NewEvent("room", "updated", room.ID, room.ID), room)
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes the room. Memberships, invites, and the room's shared
// subscriptions go with it.
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateRoom(userID, room) {
		writeError(w, http.StatusForbidden, "only the owner can delete the room")
		return
	}

	// Resolve recipients before the membership rows cascade away.
	recipients, err := roomRecipients(h.roomStore, room)
	if err != nil {
		h.logger.Error("resolve room recipients", "error", err)
	}

	if err := h.roomStore.Delete(room.ID); err != nil {
		h.logger.Error("delete room", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete room")
		return
	}

	h.hub.Publish(websocket.NewEvent("room", "deleted", room.ID, room.ID), recipients...)
	w.WriteHeader(http.StatusNoContent)
}

// Members returns the room's membership roster. The owner is implicit and
// not part of the roster; the response carries them separately.
func (h *RoomHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}

	members, err := h.roomStore.ListMembers(room.ID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []store.MemberWithUser{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id": room.OwnerID,
		"members":  members,
		"count":    len(members) + 1,
	})
}

func (h *RoomHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateRoom(userID, room) {
		writeError(w, http.StatusForbidden, "only the owner can remove members")
		return
	}

	memberID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if memberID == room.OwnerID {
		writeError(w, http.StatusBadRequest, "the owner cannot be removed")
		return
	}

	if err := h.roomStore.RemoveMember(room.ID, memberID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	h.publishToRoom(websocket.NewEvent("member", "removed", memberID, room.ID), room)
	h.hub.Publish(websocket.NewEvent("member", "removed", memberID, room.ID), memberID)
	w.WriteHeader(http.StatusNoContent)
}

// Leave removes the caller's own membership. The owner has no membership row
// and cannot leave their own room; they delete it instead.
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if room.OwnerID == userID {
		writeError(w, http.StatusBadRequest, "the owner cannot leave; delete the room instead")
		return
	}

	if err := h.roomStore.RemoveMember(room.ID, userID); err != nil {
		h.logger.Error("leave room", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to leave room")
		return
	}

	h.publishToRoom(websocket.NewEvent("member", "left", userID, room.ID), room)
	w.WriteHeader(http.StatusNoContent)
}

type inviteRequest struct {
	MaxUses *int64 `json:"max_uses"`
}

// inviteResponse is an invite plus its shareable URL.
type inviteResponse struct {
	model.RoomInvite
	URL string `json:"url"`
}

func (h *RoomHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateRoom(userID, room) {
		writeError(w, http.StatusForbidden, "only the owner can create invites")
		return
	}

	var req inviteRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.MaxUses != nil && *req.MaxUses < 1 {
		writeError(w, http.StatusBadRequest, "max_uses must be positive")
		return
	}

	inv, err := h.inviteStore.Create(room.ID, userID, req.MaxUses)
	if err != nil {
		h.logger.Error("create invite", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invite")
		return
	}

	writeJSON(w, http.StatusCreated, h.toInviteResponse(*inv))
}

func (h *RoomHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, status, msg := h.loadAccessible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateRoom(userID, room) {
		writeError(w, http.StatusForbidden, "only the owner can list invites")
		return
	}

	invites, err := h.inviteStore.ListForRoom(room.ID)
	if err != nil {
		h.logger.Error("list invites", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list invites")
		return
	}

	resp := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		resp = append(resp, h.toInviteResponse(inv))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RoomHandler) toInviteResponse(inv model.RoomInvite) inviteResponse {
	return inviteResponse{
		RoomInvite: inv,
		URL:        fmt.Sprintf("%s/invite/%s", h.baseURL, inv.Token),
	}
}

// loadAccessible fetches the room in the id path param and checks the caller
// can see it. Inaccessible and nonexistent rooms are indistinguishable to the
// client.
func (h *RoomHandler) loadAccessible(userID int64, r *http.Request) (*model.Room, int, string) {
	id, err := parseIDParam(r)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid id"
	}

	room, err := h.roomStore.GetByID(id)
	if err != nil {
		h.logger.Error("get room", "error", err)
		return nil, http.StatusInternalServerError, "failed to get room"
	}
	if room == nil {
		return nil, http.StatusNotFound, "room not found"
	}

	member, err := h.roomStore.GetMember(id, userID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		return nil, http.StatusInternalServerError, "failed to get room"
	}
	if !access.CanAccessRoom(userID, room, member) {
		return nil, http.StatusNotFound, "room not found"
	}
	return room, 0, ""
}

func (h *RoomHandler) publishToRoom(evt websocket.Event, room *model.Room) {
	recipients, err := roomRecipients(h.roomStore, room)
	if err != nil {
		h.logger.Error("resolve room recipients", "error", err)
		return
	}
	h.hub.Publish(evt, recipients...)
}
