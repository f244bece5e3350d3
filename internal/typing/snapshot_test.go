package typing

import (
	"context"
	"errors"
	"testing"
)

func TestSnapshotRoundTripResume(t *testing.T) {
	s, _, _ := newTestSession(t, "hello", 60)
	s.Tick()
	s.Tick()
	s.Input("he")
	s.Input("hex")

	data, err := s.Snapshot().Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s.Close()

	snap, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}

	clock := NewManualClock()
	rec := &fakeRecorder{}
	resumed := NewSession(rec, WithClock(clock))
	resumed.Bind(Content{ID: 1, Text: "hello"}, 60)
	if err := resumed.Resume(snap); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	v := resumed.View()
	if v.Phase != PhaseRunning {
		t.Errorf("Phase = %q, want running", v.Phase)
	}
	if v.Input != "hex" || v.ErrorIndex != 2 {
		t.Errorf("Input/ErrorIndex = %q/%d, want hex/2", v.Input, v.ErrorIndex)
	}
	if v.RemainingSeconds != 58 || v.ElapsedSeconds != 2 {
		t.Errorf("remaining/elapsed = %d/%d, want 58/2", v.RemainingSeconds, v.ElapsedSeconds)
	}
	if clock.Active() != 1 {
		t.Errorf("active tickers = %d, want 1", clock.Active())
	}

	// The error lock survives the reload.
	if resumed.Input("hexl") {
		t.Error("append accepted in restored error state")
	}
	if !resumed.Input("he") {
		t.Fatal("corrective backspace rejected")
	}
	if got := resumed.View().Mistakes; got != 1 {
		t.Errorf("Mistakes = %d, want 1", got)
	}
}

func TestResume_RejectsStaleSnapshot(t *testing.T) {
	one := 1
	tests := []struct {
		name string
		snap Snapshot
	}{
		{
			name: "different content",
			snap: Snapshot{Version: SnapshotVersion, ContentID: 99, Phase: PhaseRunning, RemainingSeconds: 10},
		},
		{
			name: "unknown version",
			snap: Snapshot{Version: 42, ContentID: 1, Phase: PhaseRunning, RemainingSeconds: 10},
		},
		{
			name: "input longer than content",
			snap: Snapshot{Version: SnapshotVersion, ContentID: 1, InputBuffer: "catalog", Phase: PhaseRunning},
		},
		{
			name: "input off the content without an error",
			snap: Snapshot{Version: SnapshotVersion, ContentID: 1, InputBuffer: "cot", Phase: PhaseRunning, RemainingSeconds: 10},
		},
		{
			name: "finished input off the content",
			snap: Snapshot{Version: SnapshotVersion, ContentID: 1, InputBuffer: "xa", Phase: PhaseFinished},
		},
		{
			name: "error index past buffer",
			snap: Snapshot{Version: SnapshotVersion, ContentID: 1, InputBuffer: "c", ErrorIndex: &one, Phase: PhaseRunning},
		},
		{
			name: "unknown phase",
			snap: Snapshot{Version: SnapshotVersion, ContentID: 1, Phase: "paused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(&fakeRecorder{}, WithClock(NewManualClock()))
			s.Bind(Content{ID: 1, Text: "cat"}, 60)

			err := s.Resume(tt.snap)
			if !errors.Is(err, ErrStaleSnapshot) {
				t.Fatalf("Resume err = %v, want ErrStaleSnapshot", err)
			}
			v := s.View()
			if v.Phase != PhaseNotStarted || v.Input != "" {
				t.Errorf("stale snapshot was applied: %+v", v)
			}
		})
	}
}

func TestResume_NotBound(t *testing.T) {
	s := NewSession(&fakeRecorder{})
	err := s.Resume(Snapshot{Version: SnapshotVersion})
	if !errors.Is(err, ErrNotBound) {
		t.Errorf("Resume err = %v, want ErrNotBound", err)
	}
}

func TestResume_AlreadyStarted(t *testing.T) {
	s, _, _ := newTestSession(t, "cat", 60)
	err := s.Resume(Snapshot{Version: SnapshotVersion, ContentID: 1, Phase: PhaseRunning, RemainingSeconds: 5})
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Resume err = %v, want ErrAlreadyStarted", err)
	}
}

func TestResume_ExpiredWhileAway(t *testing.T) {
	rec := &fakeRecorder{}
	clock := NewManualClock()
	s := NewSession(rec, WithClock(clock))
	s.Bind(Content{ID: 1, Text: "cat"}, 60)

	err := s.Resume(Snapshot{
		Version:          SnapshotVersion,
		ContentID:        1,
		InputBuffer:      "ca",
		RemainingSeconds: 0,
		ElapsedSeconds:   60,
		Phase:            PhaseRunning,
	})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if rec.calls() != 1 {
		t.Fatalf("Record calls = %d, want 1", rec.calls())
	}
	r := rec.results[0]
	if r.Reason != ReasonTimeout || r.CorrectChars != 2 || r.Seconds != 60 {
		t.Errorf("result = %+v", r)
	}
	if clock.Created() != 0 {
		t.Errorf("tickers created = %d, want 0", clock.Created())
	}
}

func TestResume_FinishedAwaitsRetry(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSession(rec, WithClock(NewManualClock()))
	s.Bind(Content{ID: 1, Text: "cat"}, 60)

	done := 4
	err := s.Resume(Snapshot{
		Version:          SnapshotVersion,
		ContentID:        1,
		InputBuffer:      "cat",
		RemainingSeconds: 56,
		ElapsedSeconds:   4,
		CompletionSecond: &done,
		Phase:            PhaseFinished,
	})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if rec.calls() != 0 {
		t.Errorf("Record calls = %d on resume, want 0", rec.calls())
	}

	v := s.View()
	if !v.Submitted || v.Result == nil || v.Result.Reason != ReasonCompleted {
		t.Fatalf("view = %+v, want submitted completed result", v)
	}
	if v.Save.Attempted || v.Saving {
		t.Errorf("save = %+v saving=%v, want neither attempted nor in flight", v.Save, v.Saving)
	}
	if s.Input("ca") {
		t.Error("input accepted on finished session")
	}

	st, err := s.RetrySave(context.Background())
	if err != nil {
		t.Fatalf("RetrySave: %v", err)
	}
	if !st.Confirmed() || rec.calls() != 1 {
		t.Fatalf("save = %+v after %d calls, want one confirmed save", st, rec.calls())
	}
}

func TestResume_Abandoned(t *testing.T) {
	s := NewSession(&fakeRecorder{}, WithClock(NewManualClock()))
	s.Bind(Content{ID: 1, Text: "cat"}, 60)
	s.Abandon()

	err := s.Resume(Snapshot{Version: SnapshotVersion, ContentID: 1, InputBuffer: "c", Phase: PhaseRunning, RemainingSeconds: 5})
	if !errors.Is(err, ErrAbandoned) {
		t.Errorf("Resume err = %v, want ErrAbandoned", err)
	}
}
