package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/metrics"
	"github.com/msomdec/typing-exam/internal/service"
	"github.com/msomdec/typing-exam/internal/view"
)

// StudentAuthHandler handles student sign in and sign out.
type StudentAuthHandler struct {
	students *service.StudentService
	cookies  *Cookies
	limiter  *service.TokenBucket
}

// NewStudentAuthHandler creates a new StudentAuthHandler. A nil limiter
// disables rate limiting.
func NewStudentAuthHandler(students *service.StudentService, cookies *Cookies, limiter *service.TokenBucket) *StudentAuthHandler {
	return &StudentAuthHandler{students: students, cookies: cookies, limiter: limiter}
}

// HandleLoginPage renders the sign-in form.
// GET /login
func (h *StudentAuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	view.LoginPage("", "").Render(r.Context(), w)
}

// HandleLogin checks the application number and date of birth, replaces any
// previous session of the student, and sends the browser to the test.
// POST /login
func (h *StudentAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	appNo := strings.TrimSpace(r.FormValue("application_number"))
	dob := strings.TrimSpace(r.FormValue("dob"))

	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		metrics.LoginAttempts.WithLabelValues("student", "rate_limited").Inc()
		w.WriteHeader(http.StatusTooManyRequests)
		view.LoginPage(appNo, "Too many sign-in attempts. Please wait a minute and try again.").Render(r.Context(), w)
		return
	}

	_, tok, err := h.students.Login(r.Context(), appNo, dob)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			metrics.LoginAttempts.WithLabelValues("student", "denied").Inc()
			w.WriteHeader(http.StatusUnauthorized)
			view.LoginPage(appNo, "Invalid application number or date of birth.").Render(r.Context(), w)
			return
		}
		slog.Error("student login", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		view.LoginPage(appNo, "An unexpected error occurred. Please try again.").Render(r.Context(), w)
		return
	}

	if err := h.cookies.SetSession(w, tok.Token, tok.ExpiresAt); err != nil {
		slog.Error("encode session cookie", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	metrics.LoginAttempts.WithLabelValues("student", "ok").Inc()
	http.Redirect(w, r, "/test", http.StatusSeeOther)
}

// HandleLogout deletes the session token and clears the cookie.
// POST /logout
func (h *StudentAuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.students.Logout(r.Context(), h.cookies.Session(r)); err != nil {
		slog.Error("student logout", "error", err)
	}
	h.cookies.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// AdminAuthHandler handles admin sign in and sign out.
type AdminAuthHandler struct {
	auth    *service.AuthService
	cookies *Cookies
	limiter *service.TokenBucket
}

// NewAdminAuthHandler creates a new AdminAuthHandler.
func NewAdminAuthHandler(auth *service.AuthService, cookies *Cookies, limiter *service.TokenBucket) *AdminAuthHandler {
	return &AdminAuthHandler{auth: auth, cookies: cookies, limiter: limiter}
}

// HandleLoginPage renders the admin sign-in form.
// GET /admin/login
func (h *AdminAuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	view.AdminLoginPage("", "").Render(r.Context(), w)
}

// HandleLogin processes the admin sign-in form.
// POST /admin/login
func (h *AdminAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if h.limiter != nil && !h.limiter.Allow("admin:"+clientIP(r)) {
		metrics.LoginAttempts.WithLabelValues("admin", "rate_limited").Inc()
		w.WriteHeader(http.StatusTooManyRequests)
		view.AdminLoginPage(email, "Too many sign-in attempts. Please wait a minute and try again.").Render(r.Context(), w)
		return
	}

	token, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			metrics.LoginAttempts.WithLabelValues("admin", "denied").Inc()
			w.WriteHeader(http.StatusUnauthorized)
			view.AdminLoginPage(email, "Invalid email or password.").Render(r.Context(), w)
			return
		}
		slog.Error("admin login", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		view.AdminLoginPage(email, "An unexpected error occurred. Please try again.").Render(r.Context(), w)
		return
	}

	h.cookies.SetAdmin(w, token, service.AdminTokenTTL)
	metrics.LoginAttempts.WithLabelValues("admin", "ok").Inc()
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// HandleLogout clears the admin cookie.
// POST /admin/logout
func (h *AdminAuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAdmin(w)
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}
