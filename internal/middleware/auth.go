package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rcavanagh/subledger/internal/auth"
	"github.com/rcavanagh/subledger/internal/store"
)

const sessionCookieName = "subledger_session"

// RequireAuth validates the session cookie and populates the auth context.
// Unauthenticated page requests are redirected to /login with the original
// path preserved; /api/ requests get a bare 401.
func RequireAuth(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFromRequest(sessionStore, r)
			if sess == nil {
				rejectUnauthenticated(w, r)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// OptionalAuth populates the auth context when a valid session cookie is
// present but lets anonymous requests through. Used by the invite landing
// page, which renders a login prompt instead of bouncing.
func OptionalAuth(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess := sessionFromRequest(sessionStore, r); sess != nil {
				ac := auth.AuthContext{UserID: sess.UserID, SessionID: sess.ID}
				r = r.WithContext(auth.WithAuth(r.Context(), ac))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionFromRequest(sessionStore *store.SessionStore, r *http.Request) *sessionValue {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return nil
	}
	return &sessionValue{ID: sess.ID, UserID: sess.UserID}
}

type sessionValue struct {
	ID     int64
	UserID int64
}

func rejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?redirect=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
