package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rcavanagh/subledger/internal/config"
	"github.com/rcavanagh/subledger/internal/handler"
	"github.com/rcavanagh/subledger/internal/middleware"
	"github.com/rcavanagh/subledger/internal/store"
	ws "github.com/rcavanagh/subledger/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	subscriptionH *handler.SubscriptionHandler
	roomH         *handler.RoomHandler
	inviteH       *handler.InviteHandler
	templateH     *handler.TemplateHandler
	sessionStore  *store.SessionStore
	inviteStore   *store.InviteStore
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	roomStore := store.NewRoomStore(db)
	inviteStore := store.NewInviteStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)

	templates := handler.NewTemplates("web/templates/*.html")

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, templates, logger.With("component", "auth")),
		subscriptionH: handler.NewSubscriptionHandler(subscriptionStore, roomStore, hub, logger.With("component", "subscription")),
		roomH:         handler.NewRoomHandler(roomStore, inviteStore, hub, cfg.BaseURL, logger.With("component", "room")),
		inviteH:       handler.NewInviteHandler(inviteStore, roomStore, hub, templates, logger.With("component", "invite")),
		templateH:     handler.NewTemplateHandler(userStore, subscriptionStore, roomStore, inviteStore, templates, cfg.BaseURL, logger.With("component", "template")),
		sessionStore:  sessionStore,
		inviteStore:   inviteStore,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// InviteStore returns the invite store for cleanup tasks.
func (s *Server) InviteStore() *store.InviteStore {
	return s.inviteStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /register", s.authH.RegisterPage)
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// The invite landing page works for anonymous visitors too.
	optionalAuth := middleware.OptionalAuth(s.sessionStore)
	outerMux.Handle("GET /invite/{token}", optionalAuth(http.HandlerFunc(s.inviteH.AcceptPage)))

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("POST /invite/{token}/accept", s.inviteH.Accept)

	// Subscription API routes
	mux.HandleFunc("GET /api/subscriptions", s.subscriptionH.List)
	mux.HandleFunc("POST /api/subscriptions", s.subscriptionH.Create)
	mux.HandleFunc("GET /api/subscriptions/{id}", s.subscriptionH.Get)
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.subscriptionH.Update)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.subscriptionH.Delete)
	mux.HandleFunc("GET /api/summary", s.subscriptionH.Summary)
	mux.HandleFunc("GET /api/upcoming", s.subscriptionH.Upcoming)

	// Room API routes
	mux.HandleFunc("GET /api/rooms", s.roomH.List)
	mux.HandleFunc("POST /api/rooms", s.roomH.Create)
	mux.HandleFunc("GET /api/rooms/{id}", s.roomH.Get)
	mux.HandleFunc("PUT /api/rooms/{id}", s.roomH.Update)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.roomH.Delete)
	mux.HandleFunc("GET /api/rooms/{id}/members", s.roomH.Members)
	mux.HandleFunc("DELETE /api/rooms/{id}/members/{user_id}", s.roomH.RemoveMember)
	mux.HandleFunc("POST /api/rooms/{id}/leave", s.roomH.Leave)
	mux.HandleFunc("GET /api/rooms/{id}/invites", s.roomH.ListInvites)
	mux.HandleFunc("POST /api/rooms/{id}/invites", s.roomH.CreateInvite)

	// Shared subscription API routes
	mux.HandleFunc("GET /api/rooms/{id}/subscriptions", s.subscriptionH.ListRoom)
	mux.HandleFunc("POST /api/rooms/{id}/subscriptions", s.subscriptionH.CreateInRoom)
	mux.HandleFunc("GET /api/rooms/{id}/summary", s.subscriptionH.RoomSummary)

	// Account routes
	mux.HandleFunc("POST /settings", s.authH.UpdateAccount)
	mux.HandleFunc("POST /settings/delete", s.authH.DeleteAccount)

	// Real-time sync
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// Page routes
	mux.HandleFunc("GET /", s.templateH.Dashboard)
	mux.HandleFunc("GET /subscriptions", s.templateH.Subscriptions)
	mux.HandleFunc("GET /rooms", s.templateH.Rooms)
	mux.HandleFunc("GET /rooms/{id}", s.templateH.Room)
	mux.HandleFunc("GET /rooms/{id}/settings", s.templateH.RoomSettings)
	mux.HandleFunc("GET /settings", s.templateH.Settings)
}
