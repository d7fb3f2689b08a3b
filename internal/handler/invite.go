package handler

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rcavanagh/subledger/internal/auth"
	"github.com/rcavanagh/subledger/internal/store"
	"github.com/rcavanagh/subledger/internal/websocket"
)

type InviteHandler struct {
	inviteStore *store.InviteStore
	roomStore   *store.RoomStore
	hub         *websocket.Hub
	templates   *template.Template
	logger      *slog.Logger
}

func NewInviteHandler(is *store.InviteStore, rs *store.RoomStore, hub *websocket.Hub, templates *template.Template, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		inviteStore: is,
		roomStore:   rs,
		hub:         hub,
		templates:   templates,
		logger:      logger,
	}
}

// AcceptPage renders the invite landing page. Anonymous visitors see the room
// preview with a login prompt; the join action itself requires a session.
func (h *InviteHandler) AcceptPage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	inv, err := h.inviteStore.GetByToken(token)
	if err != nil {
		h.logger.Error("get invite", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if inv == nil {
		h.renderInvalid(w, http.StatusNotFound, "This invite link is not valid.")
		return
	}
	if inv.Expired(time.Now().UTC()) {
		h.renderInvalid(w, http.StatusGone, "This invite link has expired.")
		return
	}

	room, err := h.roomStore.GetByID(inv.RoomID)
	if err != nil || room == nil {
		h.logger.Error("invite room lookup", "error", err)
		h.renderInvalid(w, http.StatusNotFound, "This invite link is not valid.")
		return
	}

	userID := auth.UserID(r.Context())
	renderTemplate(w, h.templates, h.logger, "invite.html", http.StatusOK, map[string]any{
		"Title":    "Join " + room.Name,
		"Room":     room,
		"Token":    token,
		"LoggedIn": userID != 0,
		"LoginURL": "/login?redirect=" + url.QueryEscape("/invite/"+token),
	})
}

// Accept redeems the invite for the signed-in caller and sends them to the
// room. Redemption is idempotent: an existing member just lands in the room
// again.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	userID := auth.UserID(r.Context())

	inv, joined, err := h.inviteStore.Redeem(token, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.renderInvalid(w, http.StatusNotFound, "This invite link is not valid.")
		return
	case errors.Is(err, store.ErrInviteExpired):
		h.renderInvalid(w, http.StatusGone, "This invite link has expired.")
		return
	case err != nil:
		h.logger.Error("redeem invite", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if joined {
		if room, err := h.roomStore.GetByID(inv.RoomID); err == nil && room != nil {
			recipients, err := roomRecipients(h.roomStore, room)
			if err == nil {
				h.hub.Publish(websocket.NewEvent("member", "joined", userID, room.ID), recipients...)
			}
		}
	}

	http.Redirect(w, r, fmt.Sprintf("/rooms/%d", inv.RoomID), http.StatusSeeOther)
}

func (h *InviteHandler) renderInvalid(w http.ResponseWriter, status int, msg string) {
	renderTemplate(w, h.templates, h.logger, "invite_invalid.html", status, map[string]any{
		"Title":   "Invite",
		"Message": msg,
	})
}
