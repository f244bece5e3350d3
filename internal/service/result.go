package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/events"
	"github.com/msomdec/typing-exam/internal/metrics"
)

// Messages returned to the student with a persistence outcome.
const (
	MsgResultSaved      = "Result saved."
	MsgInvalidPayload   = "Invalid result payload."
	MsgContentNotFound  = "Paragraph not found."
	MsgAlreadyAttempted = "Attempt blocked: Already attempted."
)

// Outcome is the answer to a persistence request. Success=false is a
// business rejection; transport failures are returned as errors instead.
type Outcome struct {
	Success bool
	Message string
}

// ResultService records attempts, one per student and passage.
type ResultService struct {
	attempts  domain.AttemptRepository
	contents  domain.ContentRepository
	publisher events.Publisher
	now       func() time.Time
}

// NewResultService creates a new ResultService. A nil publisher discards
// events.
func NewResultService(attempts domain.AttemptRepository, contents domain.ContentRepository, publisher events.Publisher) *ResultService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ResultService{attempts: attempts, contents: contents, publisher: publisher, now: time.Now}
}

// HasAttempted reports whether a result exists for the student and passage.
func (s *ResultService) HasAttempted(ctx context.Context, studentID, contentID int64) (bool, error) {
	return s.attempts.Exists(ctx, studentID, contentID)
}

// Persist stores the attempt if none exists for the same student and
// passage. The passage text and length are copied from the stored content.
func (s *ResultService) Persist(ctx context.Context, rec domain.AttemptRecord) (Outcome, error) {
	if rec.StudentID == 0 || rec.ContentID == 0 {
		metrics.Submissions.WithLabelValues(metrics.OutcomeRejected).Inc()
		return Outcome{Message: MsgInvalidPayload}, nil
	}

	content, err := s.contents.GetByID(ctx, rec.ContentID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.Submissions.WithLabelValues(metrics.OutcomeRejected).Inc()
		return Outcome{Message: MsgContentNotFound}, nil
	}
	if err != nil {
		metrics.Submissions.WithLabelValues(metrics.OutcomeError).Inc()
		return Outcome{}, fmt.Errorf("get content: %w", err)
	}

	rec.ID = 0
	rec.ContentText = content.Text
	rec.OriginalLength = len([]rune(content.Text))
	rec.SubmittedAt = s.now().UTC()

	if err := s.attempts.Create(ctx, &rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateAttempt) {
			metrics.Submissions.WithLabelValues(metrics.OutcomeDuplicate).Inc()
			return Outcome{Message: MsgAlreadyAttempted}, nil
		}
		metrics.Submissions.WithLabelValues(metrics.OutcomeError).Inc()
		return Outcome{}, fmt.Errorf("create attempt: %w", err)
	}

	metrics.Submissions.WithLabelValues(metrics.OutcomeRecorded).Inc()
	metrics.SubmissionWPM.Observe(float64(rec.WPM))

	ev := &events.AttemptRecorded{
		AttemptID:   rec.ID,
		StudentID:   rec.StudentID,
		ContentID:   rec.ContentID,
		WPM:         rec.WPM,
		Accuracy:    rec.Accuracy,
		Seconds:     rec.Seconds,
		SubmittedAt: rec.SubmittedAt,
	}
	if err := s.publisher.PublishAttemptRecorded(ctx, ev); err != nil {
		slog.Error("publish attempt recorded", "attempt_id", rec.ID, "error", err)
	}

	return Outcome{Success: true, Message: MsgResultSaved}, nil
}

// List returns every attempt, newest first.
func (s *ResultService) List(ctx context.Context) ([]domain.AttemptRow, error) {
	return s.attempts.List(ctx)
}
