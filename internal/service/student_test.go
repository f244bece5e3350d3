package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/repository/sqlite"
	"github.com/msomdec/typing-exam/internal/service"
)

func newTestStudentService(t *testing.T) (*service.StudentService, *service.SessionService, *sqlite.DB) {
	t.Helper()
	db := newTestDB(t)
	sessions := service.NewSessionService(db.Sessions(), time.Hour)
	return service.NewStudentService(db.Students(), sessions, testBcryptCost), sessions, db
}

func TestStudentService_Login(t *testing.T) {
	students, sessions, _ := newTestStudentService(t)
	ctx := context.Background()

	st, err := students.Create(ctx, "Ada", "APP-1", "2006-12-10")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, tok, err := students.Login(ctx, " APP-1 ", "2006-12-10")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != st.ID {
		t.Fatalf("Login student = %d, want %d", got.ID, st.ID)
	}
	if len(tok.Token) != 72 {
		t.Errorf("token length = %d, want two UUIDs (72)", len(tok.Token))
	}
	if until := time.Until(tok.ExpiresAt); until < 59*time.Minute || until > time.Hour {
		t.Errorf("token expires in %v, want about an hour", until)
	}

	status, err := sessions.Validate(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !status.Valid || status.Session.StudentID != st.ID {
		t.Fatalf("Validate = %+v, want valid session for student", status)
	}

	tests := []struct {
		name, appNo, dob string
	}{
		{"wrong dob", "APP-1", "2006-12-11"},
		{"unknown application", "APP-2", "2006-12-10"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := students.Login(ctx, tc.appNo, tc.dob); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestStudentService_LoginReplacesPreviousSessions(t *testing.T) {
	students, sessions, _ := newTestStudentService(t)
	ctx := context.Background()

	if _, err := students.Create(ctx, "Ada", "APP-1", "2006-12-10"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, first, err := students.Login(ctx, "APP-1", "2006-12-10")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	_, second, err := students.Login(ctx, "APP-1", "2006-12-10")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("expected a fresh token on every login")
	}

	status, err := sessions.Validate(ctx, first.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if status.Valid {
		t.Fatal("previous token should be invalid after a new login")
	}

	if err := students.Logout(ctx, second.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	status, err = sessions.Validate(ctx, second.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if status.Valid {
		t.Fatal("token should be invalid after logout")
	}
}

func TestStudentService_Import(t *testing.T) {
	students, _, _ := newTestStudentService(t)
	ctx := context.Background()

	if _, err := students.Create(ctx, "Existing", "APP-9", "2001-01-01"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	csv := strings.Join([]string{
		"dob,Name,applicationNumber",
		"2005-01-02,Ada Lovelace,APP-1",
		"2005-03-04,Alan Turing,APP-2",
		",Missing Dob,APP-3",
		"2005-05-06,,APP-4",
		"2001-01-01,Duplicate,APP-9",
		"2005-07-08,Grace Hopper,APP-1",
		"2005-09-10,Short Row",
	}, "\n")

	rep, err := students.Import(ctx, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if rep.Added != 2 || rep.Skipped != 5 {
		t.Fatalf("Import = %+v, want added=2 skipped=5", rep)
	}

	// Imported students sign in with their date of birth.
	st, _, err := students.Login(ctx, "APP-2", "2005-03-04")
	if err != nil {
		t.Fatalf("Login imported student: %v", err)
	}
	if st.Name != "Alan Turing" {
		t.Errorf("Name = %q, want Alan Turing", st.Name)
	}
}

func TestStudentService_ImportRejectsBadHeader(t *testing.T) {
	students, _, _ := newTestStudentService(t)
	ctx := context.Background()

	for _, input := range []string{"", "name,dob\nAda,2005-01-01"} {
		if _, err := students.Import(ctx, strings.NewReader(input)); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Import(%q): expected ErrInvalidInput, got %v", input, err)
		}
	}
}

func TestSessionService_ExpiredTokenIsDeleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sessions := service.NewSessionService(db.Sessions(), time.Hour)

	st := &domain.Student{Name: "A", ApplicationNumber: "APP-1", DOB: "x", PasswordHash: "x"}
	if err := db.Students().Create(ctx, st); err != nil {
		t.Fatalf("Create student: %v", err)
	}
	expired := &domain.SessionToken{Token: "expired", StudentID: st.ID, ExpiresAt: time.Now().Add(-time.Second)}
	if err := db.Sessions().Create(ctx, expired); err != nil {
		t.Fatalf("Create token: %v", err)
	}

	status, err := sessions.Validate(ctx, "expired")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if status.Valid || !status.Expired {
		t.Fatalf("Validate = %+v, want expired", status)
	}
	if _, err := db.Sessions().GetByToken(ctx, "expired"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired token should be deleted, got %v", err)
	}

	status, err = sessions.Validate(ctx, "unknown")
	if err != nil {
		t.Fatalf("Validate unknown: %v", err)
	}
	if status.Valid || status.Expired {
		t.Fatalf("Validate unknown = %+v, want invalid", status)
	}
}
