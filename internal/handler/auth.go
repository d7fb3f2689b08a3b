package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rcavanagh/subledger/internal/auth"
	"github.com/rcavanagh/subledger/internal/store"
)

const (
	sessionCookieName = "subledger_session"
	sessionMaxAge     = 30 * 24 * 60 * 60
	minPasswordLen    = 8
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	templates    *template.Template
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, templates *template.Template, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		templates:    templates,
		logger:       logger,
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, h.templates, h.logger, "login.html", http.StatusOK, map[string]any{
		"Redirect": safeRedirect(r.URL.Query().Get("redirect")),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")
	redirect := safeRedirect(r.FormValue("redirect"))

	fail := func() {
		renderTemplate(w, h.templates, h.logger, "login.html", http.StatusUnauthorized, map[string]any{
			"Error":    "Invalid email or password",
			"Email":    email,
			"Redirect": redirect,
		})
	}

	if email == "" || password == "" {
		fail()
		return
	}

	user, err := h.userStore.GetByEmail(email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		// Burn a hash comparison so missing accounts take as long as bad
		// passwords.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000u"), []byte(password))
		fail()
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		fail()
		return
	}

	h.startSession(w, r, user.ID, redirect)
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	renderTemplate(w, h.templates, h.logger, "register.html", http.StatusOK, nil)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	name := strings.TrimSpace(r.FormValue("name"))
	password := r.FormValue("password")

	fail := func(status int, msg string) {
		renderTemplate(w, h.templates, h.logger, "register.html", status, map[string]any{
			"Error": msg,
			"Email": email,
			"Name":  name,
		})
	}

	if email == "" || name == "" || password == "" {
		fail(http.StatusBadRequest, "Email, name, and password are required")
		return
	}
	if !strings.Contains(email, "@") {
		fail(http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(password) < minPasswordLen {
		fail(http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	existing, err := h.userStore.GetByEmail(email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		fail(http.StatusConflict, "An account with that email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user, err := h.userStore.Create(email, name, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.startSession(w, r, user.ID, "/")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64, redirect string) {
	sess, err := h.sessionStore.Create(userID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// UpdateAccount changes the display name from the settings form.
func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	if _, err := h.userStore.UpdateName(userID, name); err != nil {
		h.logger.Error("update name", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/settings?saved=1", http.StatusSeeOther)
}

// DeleteAccount removes the user. Their sessions, memberships, rooms, and
// subscriptions cascade away.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	if err := h.userStore.Delete(userID); err != nil {
		h.logger.Error("delete account", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/register", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
