package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

// SessionTokenRepository implements domain.SessionTokenRepository using SQLite.
type SessionTokenRepository struct {
	db *sql.DB
}

// NewSessionTokenRepository creates a new SQLite-backed SessionTokenRepository.
func NewSessionTokenRepository(db *DB) *SessionTokenRepository {
	return &SessionTokenRepository{db: db.SqlDB}
}

func (r *SessionTokenRepository) Create(ctx context.Context, t *domain.SessionToken) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_tokens (token, student_id, expires_at, test_active, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Token, t.StudentID, t.ExpiresAt.UnixMilli(), t.TestActive, nullBlob(t.Snapshot), now,
	)
	if err != nil {
		return fmt.Errorf("insert session token: %w", err)
	}
	t.CreatedAt = now
	return nil
}

func (r *SessionTokenRepository) GetByToken(ctx context.Context, token string) (*domain.SessionToken, error) {
	t := &domain.SessionToken{}
	var expiresAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT token, student_id, expires_at, test_active, snapshot, created_at
		 FROM session_tokens WHERE token = ?`, token,
	).Scan(&t.Token, &t.StudentID, &expiresAt, &t.TestActive, &t.Snapshot, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query session token: %w", err)
	}
	t.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return t, nil
}

// SetTestActive sets the latch. Setting it again is a no-op.
func (r *SessionTokenRepository) SetTestActive(ctx context.Context, token string, active bool) error {
	return r.update(ctx, "set test active", `UPDATE session_tokens SET test_active = ? WHERE token = ?`, active, token)
}

// SaveSnapshot replaces the stored snapshot. An empty snapshot clears it.
func (r *SessionTokenRepository) SaveSnapshot(ctx context.Context, token string, snapshot []byte) error {
	return r.update(ctx, "save snapshot", `UPDATE session_tokens SET snapshot = ? WHERE token = ?`, nullBlob(snapshot), token)
}

func nullBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (r *SessionTokenRepository) update(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a token. Deleting an unknown token is not an error.
func (r *SessionTokenRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

// DeleteByStudent removes every token of a student and returns them.
func (r *SessionTokenRepository) DeleteByStudent(ctx context.Context, studentID int64) ([]string, error) {
	return r.deleteWhere(ctx, `DELETE FROM session_tokens WHERE student_id = ? RETURNING token`, studentID)
}

// DeleteExpired removes every token expired at now and returns them.
func (r *SessionTokenRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	return r.deleteWhere(ctx, `DELETE FROM session_tokens WHERE expires_at <= ? RETURNING token`, now.UnixMilli())
}

func (r *SessionTokenRepository) deleteWhere(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("delete session tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("scan deleted token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete session tokens: %w", err)
	}
	return tokens, nil
}
