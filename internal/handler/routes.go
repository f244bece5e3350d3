package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msomdec/typing-exam/internal/service"
)

// Services are the dependencies of the HTTP routes.
type Services struct {
	Auth     *service.AuthService
	Students *service.StudentService
	Contents *service.ContentService
	Results  *service.ResultService
	Gate     *service.Gate
	Exam     *service.ExamService
	// Limiter throttles sign-in attempts per client. Nil disables it.
	Limiter *service.TokenBucket
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, svc Services, cookies *Cookies) {
	mux.HandleFunc("GET /healthz", HandleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", HandleHome)

	students := NewStudentAuthHandler(svc.Students, cookies, svc.Limiter)
	mux.HandleFunc("GET /login", students.HandleLoginPage)
	mux.HandleFunc("POST /login", students.HandleLogin)
	mux.HandleFunc("POST /logout", students.HandleLogout)

	test := NewTestHandler(svc.Gate, svc.Exam, cookies)
	mux.Handle("GET /test", NoStore(http.HandlerFunc(test.HandleTest)))
	mux.HandleFunc("POST /test/start", test.HandleStart)
	mux.HandleFunc("POST /test/input", test.HandleInput)
	mux.HandleFunc("GET /test/stream", test.HandleStream)
	mux.HandleFunc("POST /test/retry-save", test.HandleRetrySave)
	mux.Handle("GET /test-submitted", NoStore(http.HandlerFunc(test.HandleSubmitted)))
	mux.Handle("GET /already-attempted", NoStore(http.HandlerFunc(test.HandleAlreadyAttempted)))

	admins := NewAdminAuthHandler(svc.Auth, cookies, svc.Limiter)
	mux.HandleFunc("GET /admin/login", admins.HandleLoginPage)
	mux.HandleFunc("POST /admin/login", admins.HandleLogin)
	mux.HandleFunc("POST /admin/logout", admins.HandleLogout)

	admin := NewAdminHandler(svc.Students, svc.Contents, svc.Results, svc.Exam)
	protect := func(h http.HandlerFunc) http.Handler {
		return NoStore(RequireAdmin(svc.Auth, h))
	}
	mux.Handle("GET /admin", protect(admin.HandleDashboard))
	mux.Handle("GET /admin/results", protect(admin.HandleResults))
	mux.Handle("GET /admin/results.json", protect(admin.HandleResultsJSON))
	mux.Handle("GET /admin/content", protect(admin.HandleContentPage))
	mux.Handle("POST /admin/content", protect(admin.HandlePublish))
	mux.Handle("POST /admin/content/check", protect(admin.HandleContentCheck))
	mux.Handle("GET /admin/students", protect(admin.HandleStudentsPage))
	mux.Handle("POST /admin/students", protect(admin.HandleImport))
	mux.Handle("GET /admin/time-limit", protect(admin.HandleTimeLimitPage))
	mux.Handle("POST /admin/time-limit", protect(admin.HandleSetTimeLimit))
}
