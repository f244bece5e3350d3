package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/msomdec/typing-exam/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// ImportReport summarizes a CSV student import.
type ImportReport struct {
	Added   int
	Skipped int
}

// StudentService manages students and their sign-in.
type StudentService struct {
	students   domain.StudentRepository
	sessions   *SessionService
	bcryptCost int
}

// NewStudentService creates a new StudentService.
func NewStudentService(students domain.StudentRepository, sessions *SessionService, bcryptCost int) *StudentService {
	return &StudentService{students: students, sessions: sessions, bcryptCost: bcryptCost}
}

// Create registers a student whose password is their date of birth.
func (s *StudentService) Create(ctx context.Context, name, applicationNumber, dob string) (*domain.Student, error) {
	name = strings.TrimSpace(name)
	applicationNumber = strings.TrimSpace(applicationNumber)
	dob = strings.TrimSpace(dob)
	if name == "" || applicationNumber == "" || dob == "" {
		return nil, fmt.Errorf("%w: name, application number, and date of birth are required", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dob), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	st := &domain.Student{
		Name:              name,
		ApplicationNumber: applicationNumber,
		DOB:               dob,
		PasswordHash:      string(hash),
	}
	if err := s.students.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return st, nil
}

// Login checks the application number and date of birth and issues a new
// session token, invalidating any previous ones.
func (s *StudentService) Login(ctx context.Context, applicationNumber, dob string) (*domain.Student, *domain.SessionToken, error) {
	applicationNumber = strings.TrimSpace(applicationNumber)
	dob = strings.TrimSpace(dob)
	if applicationNumber == "" || dob == "" {
		return nil, nil, domain.ErrUnauthorized
	}

	st, err := s.students.GetByApplicationNumber(ctx, applicationNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("get student: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(dob)); err != nil {
		return nil, nil, domain.ErrUnauthorized
	}

	tok, err := s.sessions.Issue(ctx, st.ID)
	if err != nil {
		return nil, nil, err
	}
	return st, tok, nil
}

// Logout revokes the session token.
func (s *StudentService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// GetByID returns a student by ID.
func (s *StudentService) GetByID(ctx context.Context, id int64) (*domain.Student, error) {
	return s.students.GetByID(ctx, id)
}

// List returns every student.
func (s *StudentService) List(ctx context.Context) ([]domain.Student, error) {
	return s.students.List(ctx)
}

// Import reads students from CSV with a name,applicationNumber,dob header.
// Column order follows the header. Rows with a missing field or an application
// number that already exists are skipped.
func (s *StudentService) Import(ctx context.Context, r io.Reader) (ImportReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ImportReport{}, fmt.Errorf("%w: empty CSV", domain.ErrInvalidInput)
	}
	if err != nil {
		return ImportReport{}, fmt.Errorf("%w: read CSV header: %v", domain.ErrInvalidInput, err)
	}
	cols, err := importColumns(header)
	if err != nil {
		return ImportReport{}, err
	}

	var rep ImportReport
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, fmt.Errorf("%w: read CSV: %v", domain.ErrInvalidInput, err)
		}

		name, appNo, dob := field(rec, cols[0]), field(rec, cols[1]), field(rec, cols[2])
		if name == "" || appNo == "" || dob == "" {
			rep.Skipped++
			continue
		}

		if _, err := s.Create(ctx, name, appNo, dob); err != nil {
			if errors.Is(err, domain.ErrDuplicateApplication) {
				rep.Skipped++
				continue
			}
			return rep, err
		}
		rep.Added++
	}
	return rep, nil
}

var importHeader = [3]string{"name", "applicationnumber", "dob"}

// importColumns maps the required headers to their column positions.
func importColumns(header []string) ([3]int, error) {
	var cols [3]int
	for i, want := range importHeader {
		cols[i] = -1
		for j, h := range header {
			h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
			h = strings.NewReplacer("_", "", " ", "").Replace(h)
			if h == want {
				cols[i] = j
				break
			}
		}
		if cols[i] < 0 {
			return cols, fmt.Errorf("%w: CSV header must contain name, applicationNumber, dob", domain.ErrInvalidInput)
		}
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
