package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

const keyTimeLimit = "time_limit_seconds"

// SettingsRepository implements domain.SettingsRepository using a key/value
// table.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SQLite-backed SettingsRepository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db.SqlDB}
}

// GetTimeLimit returns the configured time limit, or the default when none
// has been set.
func (r *SettingsRepository) GetTimeLimit(ctx context.Context) (*domain.TimeLimit, error) {
	var (
		value     string
		updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM settings WHERE key = ?`, keyTimeLimit,
	).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.TimeLimit{DurationSeconds: domain.DefaultTimeLimitSeconds}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query time limit: %w", err)
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("parse time limit %q: %w", value, err)
	}
	return &domain.TimeLimit{DurationSeconds: seconds, UpdatedAt: updatedAt}, nil
}

func (r *SettingsRepository) SetTimeLimit(ctx context.Context, seconds int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		keyTimeLimit, strconv.Itoa(seconds), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set time limit: %w", err)
	}
	return nil
}
