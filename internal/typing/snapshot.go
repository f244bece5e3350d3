package typing

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

// ErrStaleSnapshot is returned when a snapshot cannot be applied to the
// currently bound content.
var ErrStaleSnapshot = errors.New("typing: stale snapshot")

// Snapshot is the persisted form of a session, used to resume after a reload.
type Snapshot struct {
	Version          int    `json:"version"`
	ContentID        int64  `json:"contentId"`
	InputBuffer      string `json:"inputBuffer"`
	RemainingSeconds int    `json:"remainingSeconds"`
	ElapsedSeconds   int    `json:"elapsedSeconds"`
	MistakeCount     int    `json:"mistakeCount"`
	ErrorIndex       *int   `json:"errorIndex"`
	CompletionSecond *int   `json:"completionSecond"`
	Phase            Phase  `json:"phase"`
}

// Marshal encodes the snapshot as JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// ParseSnapshot decodes a snapshot produced by Marshal.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return s, nil
}

// Snapshot captures the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:          SnapshotVersion,
		ContentID:        s.content.ID,
		InputBuffer:      string(s.input),
		RemainingSeconds: s.remaining,
		ElapsedSeconds:   s.elapsed,
		MistakeCount:     s.mistakes,
		Phase:            s.phase,
	}
	if s.errorIndex >= 0 {
		idx := s.errorIndex
		snap.ErrorIndex = &idx
	}
	if s.completion >= 0 {
		c := s.completion
		snap.CompletionSecond = &c
	}
	return snap
}

// Resume restores a snapshot into a bound session that has not started.
// A running snapshot restarts the countdown; one with no time left finishes
// immediately. A finished snapshot is restored with its result computed but
// not yet saved, so RetrySave can deliver it.
func (s *Session) Resume(snap Snapshot) error {
	s.mu.Lock()

	if !s.bound {
		s.mu.Unlock()
		return ErrNotBound
	}
	if s.abandoned {
		s.mu.Unlock()
		return ErrAbandoned
	}
	if s.phase != PhaseNotStarted {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if err := s.checkSnapshotLocked(snap); err != nil {
		s.mu.Unlock()
		return err
	}

	s.input = []rune(snap.InputBuffer)
	s.remaining = snap.RemainingSeconds
	s.elapsed = snap.ElapsedSeconds
	s.mistakes = snap.MistakeCount
	s.errorIndex = -1
	if snap.ErrorIndex != nil {
		s.errorIndex = *snap.ErrorIndex
	}
	s.completion = -1
	if snap.CompletionSecond != nil {
		s.completion = *snap.CompletionSecond
	}

	var res *Result
	switch snap.Phase {
	case PhaseNotStarted:
		s.remaining = s.duration
	case PhaseRunning:
		s.phase = PhaseRunning
		if s.remaining <= 0 {
			s.remaining = 0
			res = s.finishLocked(ReasonTimeout)
		} else {
			s.startTickerLocked()
		}
	case PhaseFinished:
		reason := ReasonTimeout
		if s.completion >= 0 {
			reason = ReasonCompleted
		}
		s.phase = PhaseFinished
		s.submitted = true
		r := s.scoreLocked(reason)
		s.result = &r
		s.closeDoneLocked()
	}
	gen := s.gen
	s.mu.Unlock()

	if res != nil {
		s.emit(gen, *res)
	}
	return nil
}

func (s *Session) checkSnapshotLocked(snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d", ErrStaleSnapshot, snap.Version)
	}
	if snap.ContentID != s.content.ID {
		return fmt.Errorf("%w: content %d, bound %d", ErrStaleSnapshot, snap.ContentID, s.content.ID)
	}
	input := []rune(snap.InputBuffer)
	if len(input) > len(s.target) {
		return fmt.Errorf("%w: input longer than content", ErrStaleSnapshot)
	}
	if snap.ErrorIndex != nil && (*snap.ErrorIndex < 0 || *snap.ErrorIndex >= len(input)) {
		return fmt.Errorf("%w: error index out of range", ErrStaleSnapshot)
	}
	if snap.ErrorIndex == nil && !hasPrefix(s.target, input) {
		return fmt.Errorf("%w: input does not match content", ErrStaleSnapshot)
	}
	if snap.RemainingSeconds < 0 || snap.ElapsedSeconds < 0 || snap.MistakeCount < 0 {
		return fmt.Errorf("%w: negative counters", ErrStaleSnapshot)
	}
	switch snap.Phase {
	case PhaseNotStarted, PhaseRunning, PhaseFinished:
	default:
		return fmt.Errorf("%w: phase %q", ErrStaleSnapshot, snap.Phase)
	}
	return nil
}
