package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/service"
)

type contextKey string

const adminContextKey contextKey = "admin"

// AdminFromContext extracts the authenticated admin from the request context.
// Returns nil if no admin is authenticated.
func AdminFromContext(ctx context.Context) *domain.Admin {
	admin, _ := ctx.Value(adminContextKey).(*domain.Admin)
	return admin
}

// RequireAdmin is middleware that protects the admin pages. It reads the
// admin_token cookie, validates the JWT, loads the admin from the DB, and
// injects it into the request context. Unauthenticated requests are sent to
// the admin sign-in page.
func RequireAdmin(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, err := authenticateAdmin(r, auth)
		if err != nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), adminContextKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticateAdmin(r *http.Request, auth *service.AuthService) (*domain.Admin, error) {
	cookie, err := r.Cookie(adminCookie)
	if err != nil {
		return nil, err
	}

	adminID, err := auth.ValidateToken(cookie.Value)
	if err != nil {
		return nil, err
	}

	return auth.GetAdminByID(r.Context(), adminID)
}

// SecurityHeaders sets conservative browser security headers on every
// response. The test page loads Datastar from its CDN, so that origin is
// allowed for scripts.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-eval' https://cdn.jsdelivr.net; "+
				"style-src 'self' 'unsafe-inline'; connect-src 'self'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// NoStore marks responses as uncacheable so the back button cannot show a
// stale test page.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the remote address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
