package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

// StudentRepository implements domain.StudentRepository using SQLite.
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a new SQLite-backed StudentRepository.
func NewStudentRepository(db *DB) *StudentRepository {
	return &StudentRepository{db: db.SqlDB}
}

func (r *StudentRepository) Create(ctx context.Context, s *domain.Student) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO students (name, application_number, dob, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.Name, s.ApplicationNumber, s.DOB, s.PasswordHash, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateApplication
		}
		return fmt.Errorf("insert student: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	s.ID = id
	s.CreatedAt = now
	return nil
}

func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*domain.Student, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *StudentRepository) GetByApplicationNumber(ctx context.Context, applicationNumber string) (*domain.Student, error) {
	return r.getOne(ctx, "application_number = ?", applicationNumber)
}

func (r *StudentRepository) getOne(ctx context.Context, where string, arg any) (*domain.Student, error) {
	s := &domain.Student{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, application_number, dob, password_hash, created_at
		 FROM students WHERE `+where, arg,
	).Scan(&s.ID, &s.Name, &s.ApplicationNumber, &s.DOB, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query student: %w", err)
	}
	return s, nil
}

func (r *StudentRepository) List(ctx context.Context) ([]domain.Student, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, application_number, dob, password_hash, created_at
		 FROM students ORDER BY name, application_number`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []domain.Student
	for rows.Next() {
		var s domain.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.ApplicationNumber, &s.DOB, &s.PasswordHash, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}
