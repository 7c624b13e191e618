package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/teemow/recircuit/internal/api"
)

const (
	// SignInPath is the sign-in page.
	SignInPath = "/auth/signin"

	// DashboardPath is where signed-in users land by default.
	DashboardPath = "/dashboard"
)

// LoadSession attaches the session to the request context when one is
// present. Requests without a session pass through unchanged.
func (m *SessionManager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, err := m.Read(r); err == nil {
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession redirects page requests without a session to the sign-in
// page, preserving the requested path as callbackUrl.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Read(r)
		if err != nil {
			http.Redirect(w, r, SignInURL(r.URL.RequestURI()), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireAdminPage redirects non-admins to the dashboard. It must run after
// RequireSession.
func RequireAdminPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		if !ok || !s.IsAdmin() {
			http.Redirect(w, r, DashboardPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPISession rejects API requests without a session.
func (m *SessionManager) RequireAPISession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Read(r)
		if err != nil {
			api.WriteError(w, r, api.ErrUnauthorized())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireAdmin rejects API requests from non-admins. It must run after
// RequireAPISession.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		if !ok || !s.IsAdmin() {
			api.WriteError(w, r, api.ErrUnauthorized())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SignInURL returns the sign-in page URL that returns to callback.
func SignInURL(callback string) string {
	if callback == "" {
		return SignInPath
	}
	return SignInPath + "?callbackUrl=" + url.QueryEscape(callback)
}

// SafeCallbackURL returns callback when it is a local path, else the
// dashboard. Absolute and protocol-relative URLs are rejected.
func SafeCallbackURL(callback string) string {
	if callback == "" || !strings.HasPrefix(callback, "/") ||
		strings.HasPrefix(callback, "//") || strings.HasPrefix(callback, "/\\") {
		return DashboardPath
	}
	u, err := url.Parse(callback)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DashboardPath
	}
	return callback
}
