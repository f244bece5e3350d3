package domain

import (
	"context"
	"time"
)

// AttemptRecord is the permanent result of one student's attempt at one
// passage. At most one exists per (StudentID, ContentID).
type AttemptRecord struct {
	ID             int64
	StudentID      int64
	ContentID      int64
	Symbols        int // correctly typed characters
	Seconds        int
	Accuracy       int
	WPM            int
	Text           string // raw typed text
	ContentText    string // passage as it was when the attempt was recorded
	OriginalLength int
	SubmittedAt    time.Time
}

// AttemptRow is an attempt joined with the student's identity for listings.
type AttemptRow struct {
	AttemptRecord
	StudentName       string
	ApplicationNumber string
}

// AttemptRepository persists attempts. Create returns ErrDuplicateAttempt when
// a record for the same student and content already exists.
type AttemptRepository interface {
	Create(ctx context.Context, record *AttemptRecord) error
	Exists(ctx context.Context, studentID, contentID int64) (bool, error)
	List(ctx context.Context) ([]AttemptRow, error)
}
