package handler

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcavanagh/subledger/internal/access"
	"github.com/rcavanagh/subledger/internal/auth"
	"github.com/rcavanagh/subledger/internal/billing"
	"github.com/rcavanagh/subledger/internal/model"
	"github.com/rcavanagh/subledger/internal/store"
)

// NewTemplates parses the page templates with the shared helper functions.
func NewTemplates(glob string) *template.Template {
	funcs := template.FuncMap{
		"money": func(v float64) string {
			return fmt.Sprintf("$%.2f", v)
		},
		"shortDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"isoDate": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"monthly": func(amount float64, cycle string) string {
			return fmt.Sprintf("$%.2f", billing.MonthlyEquivalent(amount, billing.Cycle(cycle)))
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseGlob(glob))
}

type TemplateHandler struct {
	userStore   *store.UserStore
	subStore    *store.SubscriptionStore
	roomStore   *store.RoomStore
	inviteStore *store.InviteStore
	templates   *template.Template
	baseURL     string
	logger      *slog.Logger
}

func NewTemplateHandler(
	us *store.UserStore,
	ss *store.SubscriptionStore,
	rs *store.RoomStore,
	is *store.InviteStore,
	templates *template.Template,
	baseURL string,
	logger *slog.Logger,
) *TemplateHandler {
	return &TemplateHandler{
		userStore:   us,
		subStore:    ss,
		roomStore:   rs,
		inviteStore: is,
		templates:   templates,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// Dashboard shows the spend summary, the next few bills across everything
// the user can see, and their rooms.
func (h *TemplateHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	userID := auth.UserID(r.Context())

	var (
		personal []model.Subscription
		shared   []model.Subscription
		rooms    []store.RoomWithCount
	)

	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		personal, err = h.subStore.ListActivePersonal(userID)
		return err
	})
	g.Go(func() error {
		var err error
		rooms, err = h.roomStore.ListForUser(userID)
		return err
	})
	g.Go(func() error {
		roomIDs, err := h.roomStore.RoomIDsForUser(userID)
		if err != nil {
			return err
		}
		shared, err = h.subStore.ListActiveForRooms(roomIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard load", "error", err)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	all := append(append([]model.Subscription{}, personal...), shared...)

	h.render(w, "dashboard.html", map[string]any{
		"Title":         "Subledger",
		"Summary":       billing.Summarize(personal),
		"SharedSummary": billing.Summarize(shared),
		"Upcoming":      billing.Upcoming(all, time.Now().UTC(), upcomingLimit),
		"Rooms":         rooms,
		"ActiveCount":   len(personal),
	})
}

// Subscriptions lists the user's personal subscriptions with their
// normalized totals.
func (h *TemplateHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	subs, err := h.subStore.ListPersonal(userID)
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		http.Error(w, "failed to load subscriptions", http.StatusInternalServerError)
		return
	}

	active := make([]model.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Status == model.StatusActive {
			active = append(active, sub)
		}
	}

	h.render(w, "subscriptions.html", map[string]any{
		"Title":         "Subscriptions — Subledger",
		"Subscriptions": subs,
		"Summary":       billing.Summarize(active),
	})
}

func (h *TemplateHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rooms, err := h.roomStore.ListForUser(userID)
	if err != nil {
		h.logger.Error("list rooms", "error", err)
		http.Error(w, "failed to load rooms", http.StatusInternalServerError)
		return
	}

	h.render(w, "rooms.html", map[string]any{
		"Title": "Rooms — Subledger",
		"Rooms": rooms,
	})
}

// Room shows a room's shared subscriptions and totals.
func (h *TemplateHandler) Room(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, ok := h.loadAccessible(w, r, userID)
	if !ok {
		return
	}

	subs, err := h.subStore.ListForRoom(room.ID)
	if err != nil {
		h.logger.Error("list room subscriptions", "error", err)
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return
	}
	active, err := h.subStore.ListActiveForRooms([]int64{room.ID})
	if err != nil {
		h.logger.Error("room summary", "error", err)
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return
	}
	members, err := h.roomStore.ListMembers(room.ID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return
	}

	h.render(w, "room.html", map[string]any{
		"Title":         room.Name + " — Subledger",
		"Room":          room,
		"Subscriptions": subs,
		"Summary":       billing.Summarize(active),
		"MemberCount":   len(members) + 1,
		"IsOwner":       access.CanMutateRoom(userID, room),
		"UserID":        userID,
	})
}

// RoomSettings shows the owner's administration page: roster, invites.
func (h *TemplateHandler) RoomSettings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	room, ok := h.loadAccessible(w, r, userID)
	if !ok {
		return
	}
	if !access.CanMutateRoom(userID, room) {
		http.Error(w, "only the owner can manage the room", http.StatusForbidden)
		return
	}

	members, err := h.roomStore.ListMembers(room.ID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		http.Error(w, "failed to load room settings", http.StatusInternalServerError)
		return
	}
	invites, err := h.inviteStore.ListForRoom(room.ID)
	if err != nil {
		h.logger.Error("list invites", "error", err)
		http.Error(w, "failed to load room settings", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	type inviteView struct {
		model.RoomInvite
		URL     string
		Expired bool
	}
	views := make([]inviteView, 0, len(invites))
	for _, inv := range invites {
		views = append(views, inviteView{
			RoomInvite: inv,
			URL:        fmt.Sprintf("%s/invite/%s", h.baseURL, inv.Token),
			Expired:    inv.Expired(now),
		})
	}

	h.render(w, "room_settings.html", map[string]any{
		"Title":   room.Name + " settings — Subledger",
		"Room":    room,
		"Members": members,
		"Invites": views,
	})
}

func (h *TemplateHandler) Settings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := h.userStore.GetByID(userID)
	if err != nil || user == nil {
		h.logger.Error("settings user lookup", "error", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	h.render(w, "settings.html", map[string]any{
		"Title": "Settings — Subledger",
		"User":  user,
		"Saved": r.URL.Query().Get("saved") == "1",
	})
}

func (h *TemplateHandler) loadAccessible(w http.ResponseWriter, r *http.Request, userID int64) (*model.Room, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return nil, false
	}

	room, err := h.roomStore.GetByID(id)
	if err != nil {
		h.logger.Error("get room", "error", err)
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return nil, false
	}
	member, err := h.roomStore.GetMember(id, userID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		http.Error(w, "failed to load room", http.StatusInternalServerError)
		return nil, false
	}
	if !access.CanAccessRoom(userID, room, member) {
		http.NotFound(w, r)
		return nil, false
	}
	return room, true
}

func (h *TemplateHandler) render(w http.ResponseWriter, name string, data any) {
	renderTemplate(w, h.templates, h.logger, name, http.StatusOK, data)
}
