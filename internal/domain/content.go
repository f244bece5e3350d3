package domain

import (
	"context"
	"time"
)

// DefaultDifficulty is assigned to content uploaded without a difficulty label.
const DefaultDifficulty = "medium"

// DefaultTimeLimitSeconds applies when no time limit has been configured.
const DefaultTimeLimitSeconds = 60

// TestContent is a passage the student must reproduce exactly. Attempts are
// keyed by ID, so replacing the active content never touches prior attempts.
type TestContent struct {
	ID         int64
	Text       string
	Difficulty string
	CreatedAt  time.Time
}

// TimeLimit is the global test duration.
type TimeLimit struct {
	DurationSeconds int
	UpdatedAt       time.Time
}

// ContentRepository stores passages. The most recently activated passage is
// the active one.
type ContentRepository interface {
	Create(ctx context.Context, content *TestContent) error
	GetByID(ctx context.Context, id int64) (*TestContent, error)
	GetActive(ctx context.Context) (*TestContent, error)
	List(ctx context.Context) ([]TestContent, error)
	Delete(ctx context.Context, id int64) error
}

// SettingsRepository stores global configuration such as the time limit.
type SettingsRepository interface {
	GetTimeLimit(ctx context.Context) (*TimeLimit, error)
	SetTimeLimit(ctx context.Context, seconds int) error
}
