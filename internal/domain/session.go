package domain

import (
	"context"
	"time"
)

// SessionToken is the opaque credential issued to a student at login.
// TestActive is a latch set when the student first opens the test page;
// Snapshot holds the serialized typing state used to resume after a reload.
type SessionToken struct {
	Token      string
	StudentID  int64
	ExpiresAt  time.Time
	TestActive bool
	Snapshot   []byte
	CreatedAt  time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (s *SessionToken) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionTokenRepository persists session tokens.
type SessionTokenRepository interface {
	Create(ctx context.Context, token *SessionToken) error
	GetByToken(ctx context.Context, token string) (*SessionToken, error)
	SetTestActive(ctx context.Context, token string, active bool) error
	SaveSnapshot(ctx context.Context, token string, snapshot []byte) error
	Delete(ctx context.Context, token string) error
	DeleteByStudent(ctx context.Context, studentID int64) ([]string, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}
