package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/typing-exam/internal/domain"
)

// DefaultSessionTTL is the lifetime of a student session token.
const DefaultSessionTTL = 2 * time.Hour

// TokenStatus is the outcome of validating a session token.
type TokenStatus struct {
	Valid   bool
	Expired bool
	Session *domain.SessionToken
}

// SessionService issues and validates student session tokens.
type SessionService struct {
	sessions domain.SessionTokenRepository
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	onRevoke []func(token string)
}

// NewSessionService creates a new SessionService. A non-positive ttl selects
// DefaultSessionTTL.
func NewSessionService(sessions domain.SessionTokenRepository, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{sessions: sessions, ttl: ttl, now: time.Now}
}

// OnRevoke registers fn to be called with every token the service deletes,
// whether by logout, a newer login, expiry, or submission.
func (s *SessionService) OnRevoke(fn func(token string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRevoke = append(s.onRevoke, fn)
}

func (s *SessionService) revoked(tokens ...string) {
	s.mu.Lock()
	listeners := s.onRevoke
	s.mu.Unlock()
	for _, tok := range tokens {
		for _, fn := range listeners {
			fn(tok)
		}
	}
}

// Issue replaces every token of the student with a fresh one.
func (s *SessionService) Issue(ctx context.Context, studentID int64) (*domain.SessionToken, error) {
	replaced, err := s.sessions.DeleteByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("delete previous sessions: %w", err)
	}
	s.revoked(replaced...)

	tok := &domain.SessionToken{
		Token:     newToken(),
		StudentID: studentID,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	if err := s.sessions.Create(ctx, tok); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return tok, nil
}

// newToken returns an opaque credential made of two random UUIDs.
func newToken() string {
	return uuid.NewString() + uuid.NewString()
}

// Validate resolves a token. Unknown tokens are invalid; expired tokens are
// invalid and deleted. Backend failures are returned as errors.
func (s *SessionService) Validate(ctx context.Context, token string) (TokenStatus, error) {
	if token == "" {
		return TokenStatus{}, nil
	}

	sess, err := s.sessions.GetByToken(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return TokenStatus{}, nil
	}
	if err != nil {
		return TokenStatus{}, fmt.Errorf("get session: %w", err)
	}

	if sess.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			return TokenStatus{}, fmt.Errorf("delete expired session: %w", err)
		}
		s.revoked(token)
		return TokenStatus{Expired: true}, nil
	}
	return TokenStatus{Valid: true, Session: sess}, nil
}

// SetTestActive sets the test-active latch on a token.
func (s *SessionService) SetTestActive(ctx context.Context, token string, active bool) error {
	return s.sessions.SetTestActive(ctx, token, active)
}

// SaveSnapshot stores the serialized typing state next to the token.
func (s *SessionService) SaveSnapshot(ctx context.Context, token string, snapshot []byte) error {
	return s.sessions.SaveSnapshot(ctx, token, snapshot)
}

// Revoke deletes a token.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	s.revoked(token)
	return nil
}

// PurgeExpired removes every expired token.
func (s *SessionService) PurgeExpired(ctx context.Context) (int, error) {
	expired, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.revoked(expired...)
	return len(expired), nil
}
