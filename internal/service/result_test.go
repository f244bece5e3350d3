package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/events"
	"github.com/msomdec/typing-exam/internal/repository/sqlite"
	"github.com/msomdec/typing-exam/internal/service"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.AttemptRecorded
}

func (p *recordingPublisher) PublishAttemptRecorded(_ context.Context, e *events.AttemptRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func seedStudentAndContent(t *testing.T, db *sqlite.DB, text string) (*domain.Student, *domain.TestContent) {
	t.Helper()
	ctx := context.Background()
	st := &domain.Student{Name: "Ada", ApplicationNumber: "APP-1", DOB: "2005-01-01", PasswordHash: "x"}
	if err := db.Students().Create(ctx, st); err != nil {
		t.Fatalf("Create student: %v", err)
	}
	c := &domain.TestContent{Text: text}
	if err := db.Contents().Create(ctx, c); err != nil {
		t.Fatalf("Create content: %v", err)
	}
	return st, c
}

func TestResultService_Persist(t *testing.T) {
	db := newTestDB(t)
	pub := &recordingPublisher{}
	results := service.NewResultService(db.Attempts(), db.Contents(), pub)
	ctx := context.Background()
	st, c := seedStudentAndContent(t, db, "héllo")

	out, err := results.Persist(ctx, domain.AttemptRecord{
		StudentID: st.ID, ContentID: c.ID, Symbols: 5, Seconds: 10, Accuracy: 100, WPM: 6,
		Text: "héllo", ContentText: "spoofed", OriginalLength: 99,
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !out.Success || out.Message != service.MsgResultSaved {
		t.Fatalf("Persist = %+v, want success", out)
	}

	rows, err := results.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("List returned %d rows, want 1", len(rows))
	}
	if rows[0].ContentText != "héllo" || rows[0].OriginalLength != 5 {
		t.Errorf("content snapshot = %q/%d, want server copy héllo/5", rows[0].ContentText, rows[0].OriginalLength)
	}
	if rows[0].SubmittedAt.IsZero() {
		t.Error("SubmittedAt should be set")
	}

	if len(pub.events) != 1 || pub.events[0].StudentID != st.ID || pub.events[0].WPM != 6 {
		t.Errorf("events = %+v, want one attempt.recorded", pub.events)
	}

	attempted, err := results.HasAttempted(ctx, st.ID, c.ID)
	if err != nil {
		t.Fatalf("HasAttempted: %v", err)
	}
	if !attempted {
		t.Error("HasAttempted = false after persist")
	}
}

func TestResultService_PersistRejects(t *testing.T) {
	db := newTestDB(t)
	results := service.NewResultService(db.Attempts(), db.Contents(), nil)
	ctx := context.Background()
	st, c := seedStudentAndContent(t, db, "cat")

	if _, err := results.Persist(ctx, domain.AttemptRecord{StudentID: st.ID, ContentID: c.ID, Text: "cat"}); err != nil {
		t.Fatalf("first Persist: %v", err)
	}

	tests := []struct {
		name string
		rec  domain.AttemptRecord
		want string
	}{
		{"missing student", domain.AttemptRecord{ContentID: c.ID}, service.MsgInvalidPayload},
		{"missing content", domain.AttemptRecord{StudentID: st.ID}, service.MsgInvalidPayload},
		{"unknown content", domain.AttemptRecord{StudentID: st.ID, ContentID: c.ID + 100}, service.MsgContentNotFound},
		{"duplicate", domain.AttemptRecord{StudentID: st.ID, ContentID: c.ID, WPM: 200}, service.MsgAlreadyAttempted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := results.Persist(ctx, tc.rec)
			if err != nil {
				t.Fatalf("Persist: %v", err)
			}
			if out.Success || out.Message != tc.want {
				t.Fatalf("Persist = %+v, want rejection %q", out, tc.want)
			}
		})
	}

	rows, err := results.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].WPM != 0 {
		t.Fatalf("the first attempt must be the only one stored: %+v", rows)
	}
}

func TestResultService_ConcurrentDuplicates(t *testing.T) {
	db := newTestDB(t)
	results := service.NewResultService(db.Attempts(), db.Contents(), nil)
	ctx := context.Background()
	st, c := seedStudentAndContent(t, db, "cat")

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := results.Persist(ctx, domain.AttemptRecord{StudentID: st.ID, ContentID: c.ID})
			if err != nil {
				t.Errorf("Persist: %v", err)
				return
			}
			if out.Success {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Fatalf("%d concurrent saves succeeded, want exactly 1", success)
	}
}
