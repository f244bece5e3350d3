package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/textcheck"
)

// Time limit bounds accepted from admins.
const (
	MinTimeLimitSeconds = 10
	MaxTimeLimitSeconds = 3600
)

var difficulties = map[string]bool{"easy": true, "medium": true, "hard": true}

// ContentService manages the test passages and the global time limit.
type ContentService struct {
	contents domain.ContentRepository
	settings domain.SettingsRepository
}

// NewContentService creates a new ContentService.
func NewContentService(contents domain.ContentRepository, settings domain.SettingsRepository) *ContentService {
	return &ContentService{contents: contents, settings: settings}
}

// Publish validates text and stores it as the new active passage. Surrounding
// whitespace is trimmed first. Text containing characters outside printable
// ASCII is rejected with the offending characters listed.
func (s *ContentService) Publish(ctx context.Context, text, difficulty string) (*domain.TestContent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: paragraph is empty", domain.ErrInvalidInput)
	}
	if res := textcheck.Validate(text); !res.Valid {
		return nil, fmt.Errorf("%w: paragraph contains unsupported characters: %s", domain.ErrInvalidInput, res.Describe())
	}

	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = domain.DefaultDifficulty
	}
	if !difficulties[difficulty] {
		return nil, fmt.Errorf("%w: difficulty must be easy, medium, or hard", domain.ErrInvalidInput)
	}

	c := &domain.TestContent{Text: text, Difficulty: difficulty}
	if err := s.contents.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	return c, nil
}

// ActiveContent returns the passage students are currently tested on, or
// domain.ErrNotFound.
func (s *ContentService) ActiveContent(ctx context.Context) (*domain.TestContent, error) {
	return s.contents.GetActive(ctx)
}

// GetByID returns a passage by ID.
func (s *ContentService) GetByID(ctx context.Context, id int64) (*domain.TestContent, error) {
	return s.contents.GetByID(ctx, id)
}

// List returns every passage, newest first.
func (s *ContentService) List(ctx context.Context) ([]domain.TestContent, error) {
	return s.contents.List(ctx)
}

// TimeLimit returns the configured duration.
func (s *ContentService) TimeLimit(ctx context.Context) (domain.TimeLimit, error) {
	tl, err := s.settings.GetTimeLimit(ctx)
	if err != nil {
		return domain.TimeLimit{}, fmt.Errorf("get time limit: %w", err)
	}
	return *tl, nil
}

// SetTimeLimit changes the duration used by typing sessions bound from now on.
func (s *ContentService) SetTimeLimit(ctx context.Context, seconds int) error {
	if seconds < MinTimeLimitSeconds || seconds > MaxTimeLimitSeconds {
		return fmt.Errorf("%w: time limit must be between %d and %d seconds",
			domain.ErrInvalidInput, MinTimeLimitSeconds, MaxTimeLimitSeconds)
	}
	return s.settings.SetTimeLimit(ctx, seconds)
}
