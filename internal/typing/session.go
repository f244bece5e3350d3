package typing

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Phase is the lifecycle stage of a typing session.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhaseFinished   Phase = "finished"
)

// Reason records why a session finished.
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonTimeout   Reason = "timeout"
)

var (
	ErrNotBound       = errors.New("typing: no content bound")
	ErrNotFinished    = errors.New("typing: session not finished")
	ErrAlreadyStarted = errors.New("typing: session already started")
	ErrSaving         = errors.New("typing: save already in progress")
	ErrAbandoned      = errors.New("typing: session abandoned")
)

// Content is the text a session is typed against.
type Content struct {
	ID   int64
	Text string
}

// Result is the scored outcome emitted once when a session finishes.
type Result struct {
	ContentID int64
	Text      string
	Mistakes  int
	Reason    Reason
	Metrics
}

// Outcome is the answer of a Recorder for a successfully delivered result.
// Success=false with a message is a business rejection, such as a duplicate.
type Outcome struct {
	Success bool
	Message string
}

// Recorder receives finished results.
type Recorder interface {
	Record(ctx context.Context, r Result) (Outcome, error)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, r Result) (Outcome, error)

func (f RecorderFunc) Record(ctx context.Context, r Result) (Outcome, error) {
	return f(ctx, r)
}

// SaveState describes the last attempt to record the session result.
type SaveState struct {
	Attempted bool
	Outcome   Outcome
	Err       error
}

// Confirmed reports whether the recorder answered without a transport error.
func (s SaveState) Confirmed() bool {
	return s.Attempted && s.Err == nil
}

// View is an immutable copy of a session's state.
type View struct {
	ContentID        int64
	Target           string
	Input            string
	Cursor           int
	ErrorIndex       int // -1 when not in error state
	Mistakes         int
	Duration         int
	RemainingSeconds int
	ElapsedSeconds   int
	CompletionSecond int // -1 until the text is completed
	Phase            Phase
	Submitted        bool
	Result           *Result
	Save             SaveState
	Saving           bool // a save is in flight
}

// InError reports whether input is locked until the error is corrected.
func (v View) InError() bool { return v.ErrorIndex >= 0 }

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for the one-second countdown ticker.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithOnChange registers a hook that receives a snapshot after every
// accepted transition. It is called with the session lock held and must not
// call back into the session.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Session) { s.onChange = fn }
}

// WithContext sets the context passed to the Recorder when a result is
// emitted.
func WithContext(ctx context.Context) Option {
	return func(s *Session) { s.ctx = ctx }
}

// Session is a single typing attempt: a countdown, an input buffer validated
// per character against the target, and a one-shot result emission.
type Session struct {
	mu       sync.Mutex
	clock    Clock
	recorder Recorder
	onChange func(Snapshot)
	ctx      context.Context

	content  Content
	target   []rune
	bound    bool
	duration int

	input      []rune
	errorIndex int
	mistakes   int
	remaining  int
	elapsed    int
	completion int
	phase      Phase
	submitted  bool
	abandoned  bool

	ticker Ticker
	stop   chan struct{}

	// gen increments on every reset so a late emission from a previous
	// binding cannot overwrite the save state of the new one.
	gen        int
	result     *Result
	save       SaveState
	saving     bool
	done       chan struct{}
	doneClosed bool
}

// NewSession creates an unbound session that reports results to rec.
func NewSession(rec Recorder, opts ...Option) *Session {
	s := &Session{
		clock:      SystemClock{},
		recorder:   rec,
		ctx:        context.Background(),
		errorIndex: -1,
		completion: -1,
		phase:      PhaseNotStarted,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind attaches content and a duration in seconds. Binding different content
// resets the session. Rebinding the same content only refreshes the duration,
// and only before the session has started.
func (s *Session) Bind(c Content, durationSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound && s.content.ID == c.ID {
		if s.phase == PhaseNotStarted {
			s.duration = durationSeconds
			s.remaining = durationSeconds
		}
		return
	}

	s.stopTickerLocked()
	s.content = c
	s.target = []rune(c.Text)
	s.bound = true
	s.duration = durationSeconds
	s.resetLocked()
	s.remaining = durationSeconds
}

func (s *Session) resetLocked() {
	s.input = nil
	s.errorIndex = -1
	s.mistakes = 0
	s.remaining = 0
	s.elapsed = 0
	s.completion = -1
	s.phase = PhaseNotStarted
	s.submitted = false
	s.result = nil
	s.save = SaveState{}
	s.saving = false
	s.gen++
	if s.doneClosed {
		s.done = make(chan struct{})
		s.doneClosed = false
	}
}

// Start begins the countdown. It reports false unless the session was bound
// and not yet started.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound || s.abandoned || s.phase != PhaseNotStarted {
		return false
	}
	s.phase = PhaseRunning
	s.remaining = s.duration
	s.elapsed = 0
	s.completion = -1
	s.startTickerLocked()
	s.notifyLocked()
	return true
}

// Tick advances the countdown by one second. Reaching zero finishes the
// session with ReasonTimeout before Tick returns.
func (s *Session) Tick() bool {
	return s.tick(nil)
}

func (s *Session) tick(from chan struct{}) bool {
	s.mu.Lock()
	if s.abandoned || s.phase != PhaseRunning || (from != nil && from != s.stop) {
		s.mu.Unlock()
		return false
	}
	s.elapsed++
	s.remaining--
	var res *Result
	if s.remaining <= 0 {
		s.remaining = 0
		res = s.finishLocked(ReasonTimeout)
	}
	s.notifyLocked()
	gen := s.gen
	s.mu.Unlock()

	if res != nil {
		s.emit(gen, *res)
	}
	return true
}

// Input offers the full new contents of the input field. It reports whether
// the candidate was accepted.
func (s *Session) Input(candidate string) bool {
	s.mu.Lock()
	ok, res := s.applyLocked([]rune(candidate))
	if ok {
		s.notifyLocked()
	}
	gen := s.gen
	s.mu.Unlock()

	if res != nil {
		s.emit(gen, *res)
	}
	return ok
}

func (s *Session) applyLocked(c []rune) (bool, *Result) {
	if s.abandoned || s.phase != PhaseRunning || len(c) > len(s.target) {
		return false, nil
	}

	if s.errorIndex >= 0 {
		if len(c) >= len(s.input) {
			return false, nil
		}
		s.mistakes++
		s.input = c
		if hasPrefix(s.target, c) {
			s.errorIndex = -1
		}
		return true, nil
	}

	last := len(c) - 1
	if last >= 0 && c[last] != s.target[last] {
		s.errorIndex = last
		s.input = c
		return true, nil
	}

	s.input = c
	if len(c) == len(s.target) && s.completion < 0 {
		s.completion = s.elapsed
		return true, s.finishLocked(ReasonCompleted)
	}
	return true, nil
}

func hasPrefix(target, c []rune) bool {
	if len(c) > len(target) {
		return false
	}
	for i, r := range c {
		if target[i] != r {
			return false
		}
	}
	return true
}

// Finish ends a running session. A second call is absorbed.
func (s *Session) Finish(reason Reason) bool {
	s.mu.Lock()
	if s.abandoned || s.phase != PhaseRunning {
		s.mu.Unlock()
		return false
	}
	res := s.finishLocked(reason)
	s.notifyLocked()
	gen := s.gen
	s.mu.Unlock()

	if res != nil {
		s.emit(gen, *res)
	}
	return res != nil
}

// finishLocked latches the session and returns the result to emit, or nil if
// the session had already finished.
func (s *Session) finishLocked(reason Reason) *Result {
	if s.submitted {
		return nil
	}
	s.submitted = true
	s.phase = PhaseFinished
	s.saving = true
	s.stopTickerLocked()

	r := s.scoreLocked(reason)
	s.result = &r
	return &r
}

func (s *Session) scoreLocked(reason Reason) Result {
	taken := s.elapsed
	if s.completion >= 0 {
		taken = s.completion
	}
	return Result{
		ContentID: s.content.ID,
		Text:      string(s.input),
		Mistakes:  s.mistakes,
		Reason:    reason,
		Metrics:   ComputeMetrics(s.target, s.input, s.mistakes, taken),
	}
}

func (s *Session) emit(gen int, r Result) {
	out, err := s.recorder.Record(s.ctx, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.saving = false
	s.save = SaveState{Attempted: true, Outcome: out, Err: err}
	s.closeDoneLocked()
}

// RetrySave re-submits the already computed result after a failed save.
func (s *Session) RetrySave(ctx context.Context) (SaveState, error) {
	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		return SaveState{}, ErrAbandoned
	}
	if s.result == nil {
		s.mu.Unlock()
		return SaveState{}, ErrNotFinished
	}
	if s.saving {
		s.mu.Unlock()
		return SaveState{}, ErrSaving
	}
	if s.save.Confirmed() {
		st := s.save
		s.mu.Unlock()
		return st, nil
	}
	s.saving = true
	r := *s.result
	gen := s.gen
	s.mu.Unlock()

	out, err := s.recorder.Record(ctx, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	st := SaveState{Attempted: true, Outcome: out, Err: err}
	if gen == s.gen {
		s.saving = false
		s.save = st
		s.closeDoneLocked()
	}
	return st, nil
}

// Done is closed once the session has finished and its result emission has
// completed, successfully or not.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Session) closeDoneLocked() {
	if !s.doneClosed {
		close(s.done)
		s.doneClosed = true
	}
}

// View returns a copy of the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ContentID:        s.content.ID,
		Target:           string(s.target),
		Input:            string(s.input),
		Cursor:           len(s.input),
		ErrorIndex:       s.errorIndex,
		Mistakes:         s.mistakes,
		Duration:         s.duration,
		RemainingSeconds: s.remaining,
		ElapsedSeconds:   s.elapsed,
		CompletionSecond: s.completion,
		Phase:            s.phase,
		Submitted:        s.submitted,
		Save:             s.save,
		Saving:           s.saving,
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	return v
}

// Close cancels the ticker without finishing the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickerLocked()
}

// Abandon cancels the ticker and latches the session so that nothing can
// finish it or record its result afterwards. A save already in flight is
// left to complete.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = true
	s.stopTickerLocked()
}

func (s *Session) startTickerLocked() {
	s.stopTickerLocked()
	t := s.clock.NewTicker(time.Second)
	stop := make(chan struct{})
	s.ticker = t
	s.stop = stop
	go s.run(t, stop)
}

func (s *Session) stopTickerLocked() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.stop = nil
}

func (s *Session) run(t Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			s.tick(stop)
		}
	}
}

func (s *Session) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}
