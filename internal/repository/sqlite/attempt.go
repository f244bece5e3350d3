package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

// AttemptRepository implements domain.AttemptRepository using SQLite. The
// UNIQUE(student_id, content_id) constraint makes Create an atomic
// insert-if-absent.
type AttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new SQLite-backed AttemptRepository.
func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db.SqlDB}
}

func (r *AttemptRepository) Create(ctx context.Context, a *domain.AttemptRecord) error {
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO attempts (student_id, content_id, symbols, seconds, accuracy, wpm,
		 text, content_text, original_length, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.StudentID, a.ContentID, a.Symbols, a.Seconds, a.Accuracy, a.WPM,
		a.Text, a.ContentText, a.OriginalLength, a.SubmittedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateAttempt
		}
		return fmt.Errorf("insert attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

func (r *AttemptRepository) Exists(ctx context.Context, studentID, contentID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM attempts WHERE student_id = ? AND content_id = ?)`,
		studentID, contentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query attempt exists: %w", err)
	}
	return exists, nil
}

// List returns every attempt with the student's identity, newest first.
func (r *AttemptRepository) List(ctx context.Context) ([]domain.AttemptRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.student_id, a.content_id, a.symbols, a.seconds, a.accuracy, a.wpm,
		 a.text, a.content_text, a.original_length, a.submitted_at,
		 s.name, s.application_number
		 FROM attempts a JOIN students s ON s.id = a.student_id
		 ORDER BY a.submitted_at DESC, a.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptRow
	for rows.Next() {
		var a domain.AttemptRow
		if err := rows.Scan(&a.ID, &a.StudentID, &a.ContentID, &a.Symbols, &a.Seconds,
			&a.Accuracy, &a.WPM, &a.Text, &a.ContentText, &a.OriginalLength, &a.SubmittedAt,
			&a.StudentName, &a.ApplicationNumber); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
