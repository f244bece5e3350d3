package events

import (
	"context"
	"time"
)

// RoutingAttemptRecorded is the routing key for AttemptRecorded events.
const RoutingAttemptRecorded = "attempt.recorded"

// AttemptRecorded is published after a result has been stored.
type AttemptRecorded struct {
	EventType         string    `json:"eventType"`
	AttemptID         int64     `json:"attemptId"`
	StudentID         int64     `json:"studentId"`
	ApplicationNumber string    `json:"applicationNumber,omitempty"`
	ContentID         int64     `json:"contentId"`
	WPM               int       `json:"wpm"`
	Accuracy          int       `json:"accuracy"`
	Seconds           int       `json:"seconds"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

// Publisher delivers domain events to interested consumers.
type Publisher interface {
	PublishAttemptRecorded(ctx context.Context, e *AttemptRecorded) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishAttemptRecorded(context.Context, *AttemptRecorded) error { return nil }
func (Nop) Close() error                                                  { return nil }
