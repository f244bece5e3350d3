package handler_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/typing-exam/internal/handler"
	"github.com/msomdec/typing-exam/internal/repository/sqlite"
	"github.com/msomdec/typing-exam/internal/service"
	"github.com/msomdec/typing-exam/internal/typing"
)

const (
	testJWTSecret  = "test-secret-for-handler-tests-0123456789"
	testHashKey    = "test-hash-key-for-handler-tests-0123456789"
	testBcryptCost = 4
)

type testEnv struct {
	db      *sqlite.DB
	svc     handler.Services
	cookies *handler.Cookies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessions := service.NewSessionService(db.Sessions(), time.Hour)
	students := service.NewStudentService(db.Students(), sessions, testBcryptCost)
	contents := service.NewContentService(db.Contents(), db.Settings())
	results := service.NewResultService(db.Attempts(), db.Contents(), nil)
	exam := service.NewExamService(results, sessions, typing.NewManualClock())
	t.Cleanup(exam.Close)

	return &testEnv{
		db: db,
		svc: handler.Services{
			Auth:     service.NewAuthService(db.Admins(), testJWTSecret, testBcryptCost),
			Students: students,
			Contents: contents,
			Results:  results,
			Gate:     service.NewGate(sessions, students, contents, results),
			Exam:     exam,
		},
		cookies: handler.NewCookies([]byte(testHashKey), time.Hour, false),
	}
}

func (e *testEnv) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, e.svc, e.cookies)
	srv := httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(srv.Close)
	return srv
}

// seed creates a student and publishes an active paragraph.
func (e *testEnv) seed(t *testing.T, text string) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.svc.Students.Create(ctx, "Ada", "APP-1", "2005-01-01"); err != nil {
		t.Fatalf("Create student: %v", err)
	}
	if text == "" {
		return
	}
	if _, err := e.svc.Contents.Publish(ctx, text, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func newClient(t *testing.T) (*http.Client, *cookiejar.Jar) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // don't follow redirects automatically
		},
	}, jar
}

func hasCookie(t *testing.T, jar *cookiejar.Jar, rawURL, name string) bool {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == name {
			return true
		}
	}
	return false
}

func login(t *testing.T, client *http.Client, srvURL string) *http.Response {
	t.Helper()
	resp, err := client.PostForm(srvURL+"/login", url.Values{
		"application_number": {"APP-1"},
		"dob":                {"2005-01-01"},
	})
	if err != nil {
		t.Fatalf("POST /login: %v", err)
	}
	resp.Body.Close()
	return resp
}
