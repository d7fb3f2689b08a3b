package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rcavanagh/subledger/internal/access"
	"github.com/rcavanagh/subledger/internal/auth"
	"github.com/rcavanagh/subledger/internal/billing"
	"github.com/rcavanagh/subledger/internal/model"
	"github.com/rcavanagh/subledger/internal/store"
	"github.com/rcavanagh/subledger/internal/websocket"
)

// upcomingLimit caps the dashboard's upcoming-bills list.
const upcomingLimit = 5

const dateLayout = "2006-01-02"

type SubscriptionHandler struct {
	subStore  *store.SubscriptionStore
	roomStore *store.RoomStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewSubscriptionHandler(ss *store.SubscriptionStore, rs *store.RoomStore, hub *websocket.Hub, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subStore: ss, roomStore: rs, hub: hub, logger: logger}
}

type subscriptionRequest struct {
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	BillingCycle    string  `json:"billing_cycle"`
	NextBillingDate string  `json:"next_billing_date"`
	Category        string  `json:"category"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes"`
}

// validate normalizes the request and returns the parsed billing date, or an
// error message suitable for the client.
func (req *subscriptionRequest) validate() (time.Time, string) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return time.Time{}, "name is required"
	}
	if req.Amount <= 0 {
		return time.Time{}, "amount must be positive"
	}
	if !billing.ValidCycle(billing.Cycle(req.BillingCycle)) {
		return time.Time{}, "invalid billing_cycle"
	}
	if req.Status == "" {
		req.Status = model.StatusActive
	}
	if !model.ValidStatus(req.Status) {
		return time.Time{}, "invalid status"
	}
	if req.Category == "" {
		req.Category = "other"
	}
	if !model.ValidCategory(req.Category) {
		return time.Time{}, "invalid category"
	}
	date, err := time.Parse(dateLayout, req.NextBillingDate)
	if err != nil {
		return time.Time{}, "next_billing_date must be YYYY-MM-DD"
	}
	return date, ""
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	subs, err := h.subStore.ListPersonal(userID)
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	date, errMsg := req.validate()
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	sub, err := h.subStore.Create(userID, nil, req.Name, req.Amount, req.BillingCycle, date, req.Category, req.Status, req.Notes)
	if err != nil {
		h.logger.Error("create subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	h.hub.Publish(websocket.NewEvent("subscription", "created", sub.ID, 0), userID)
	writeJSON(w, http.StatusCreated, sub)
}

// CreateInRoom adds a shared subscription to the room. Any member may
// contribute; the row stays owned by its creator.
func (h *SubscriptionHandler) CreateInRoom(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	roomID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	room, ok, err := h.loadRoomAccess(userID, roomID)
	if err != nil {
		h.logger.Error("room access", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	date, errMsg := req.validate()
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	sub, err := h.subStore.Create(userID, &room.ID, req.Name, req.Amount, req.BillingCycle, date, req.Category, req.Status, req.Notes)
	if err != nil {
		h.logger.Error("create room subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	h.publishToRoom(websocket.NewEvent("subscription", "created", sub.ID, room.ID), room)
	writeJSON(w, http.StatusCreated, sub)
}

// ListRoom returns the room's shared subscriptions.
func (h *SubscriptionHandler) ListRoom(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	roomID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if _, ok, err := h.loadRoomAccess(userID, roomID); err != nil {
		h.logger.Error("room access", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	subs, err := h.subStore.ListForRoom(roomID)
	if err != nil {
		h.logger.Error("list room subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	sub, status, msg := h.loadVisible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	sub, status, msg := h.loadVisible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateSubscription(userID, sub) {
		writeError(w, http.StatusForbidden, "only the creator can modify this subscription")
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	date, errMsg := req.validate()
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	updated, err := h.subStore.Update(sub.ID, req.Name, req.Amount, req.BillingCycle, date, req.Category, req.Status, req.Notes)
	if err != nil {
		h.logger.Error("update subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	h.publishChange("updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	sub, status, msg := h.loadVisible(userID, r)
	if msg != "" {
		writeError(w, status, msg)
		return
	}
	if !access.CanMutateSubscription(userID, sub) {
		writeError(w, http.StatusForbidden, "only the creator can delete this subscription")
		return
	}

	if err := h.subStore.Delete(sub.ID); err != nil {
		h.logger.Error("delete subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	h.publishChange("deleted", sub)
	w.WriteHeader(http.StatusNoContent)
}

// Summary returns the caller's personal spend totals over active
// subscriptions only.
func (h *SubscriptionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	subs, err := h.subStore.ListActivePersonal(userID)
	if err != nil {
		h.logger.Error("summary subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	writeJSON(w, http.StatusOK, billing.Summarize(subs))
}

// RoomSummary returns spend totals over the room's active subscriptions.
func (h *SubscriptionHandler) RoomSummary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	roomID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if _, ok, err := h.loadRoomAccess(userID, roomID); err != nil {
		h.logger.Error("room access", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load room")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	subs, err := h.subStore.ListActiveForRooms([]int64{roomID})
	if err != nil {
		h.logger.Error("room summary subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	writeJSON(w, http.StatusOK, billing.Summarize(subs))
}

// Upcoming returns the next few bills across everything the caller can see:
// personal subscriptions plus every accessible room's shared ones, active
// rows only.
func (h *SubscriptionHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	subs, err := h.visibleActive(userID)
	if err != nil {
		h.logger.Error("upcoming subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load upcoming bills")
		return
	}

	bills := billing.Upcoming(subs, time.Now().UTC(), upcomingLimit)
	if bills == nil {
		bills = []billing.UpcomingBill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

// visibleActive collects the user's active personal subscriptions and the
// active shared subscriptions of every room they can access.
func (h *SubscriptionHandler) visibleActive(userID int64) ([]model.Subscription, error) {
	personal, err := h.subStore.ListActivePersonal(userID)
	if err != nil {
		return nil, err
	}
	roomIDs, err := h.roomStore.RoomIDsForUser(userID)
	if err != nil {
		return nil, err
	}
	shared, err := h.subStore.ListActiveForRooms(roomIDs)
	if err != nil {
		return nil, err
	}
	return append(personal, shared...), nil
}

// loadVisible fetches the subscription in the id path param and checks the
// caller can see it: personal rows are visible to their creator, room rows to
// anyone with room access. Returns a client-facing error message on failure.
func (h *SubscriptionHandler) loadVisible(userID int64, r *http.Request) (*model.Subscription, int, string) {
	id, err := parseIDParam(r)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid id"
	}

	sub, err := h.subStore.GetByID(id)
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		return nil, http.StatusInternalServerError, "failed to get subscription"
	}
	if sub == nil {
		return nil, http.StatusNotFound, "subscription not found"
	}

	if sub.RoomID == nil {
		if sub.UserID != userID {
			return nil, http.StatusNotFound, "subscription not found"
		}
		return sub, 0, ""
	}

	_, ok, err := h.loadRoomAccess(userID, *sub.RoomID)
	if err != nil {
		h.logger.Error("room access", "error", err)
		return nil, http.StatusInternalServerError, "failed to load room"
	}
	if !ok {
		return nil, http.StatusNotFound, "subscription not found"
	}
	return sub, 0, ""
}

// loadRoomAccess fetches the room and evaluates the caller's access to it.
func (h *SubscriptionHandler) loadRoomAccess(userID, roomID int64) (*model.Room, bool, error) {
	room, err := h.roomStore.GetByID(roomID)
	if err != nil {
		return nil, false, err
	}
	if room == nil {
		return nil, false, nil
	}
	member, err := h.roomStore.GetMember(roomID, userID)
	if err != nil {
		return nil, false, err
	}
	return room, access.CanAccessRoom(userID, room, member), nil
}

// publishChange routes a subscription event to the people it concerns.
func (h *SubscriptionHandler) publishChange(action string, sub *model.Subscription) {
	if sub.RoomID == nil {
		h.hub.Publish(websocket.NewEvent("subscription", action, sub.ID, 0), sub.UserID)
		return
	}
	room, err := h.roomStore.GetByID(*sub.RoomID)
	if err != nil || room == nil {
		return
	}
	h.publishToRoom(websocket.NewEvent("subscription", action, sub.ID, room.ID), room)
}

func (h *SubscriptionHandler) publishToRoom(evt websocket.Event, room *model.Room) {
	recipients, err := roomRecipients(h.roomStore, room)
	if err != nil {
		h.logger.Error("resolve room recipients", "error", err)
		return
	}
	h.hub.Publish(evt, recipients...)
}

// roomRecipients returns the owner plus every member of the room.
func roomRecipients(rs *store.RoomStore, room *model.Room) ([]int64, error) {
	members, err := rs.ListMembers(room.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members)+1)
	ids = append(ids, room.OwnerID)
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
