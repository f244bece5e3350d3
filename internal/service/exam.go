package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/metrics"
	"github.com/msomdec/typing-exam/internal/typing"
)

// ErrNoSession is returned when no live typing session exists for a token.
var ErrNoSession = errors.New("no live typing session")

// ResultPersister stores finished attempts.
type ResultPersister interface {
	Persist(ctx context.Context, rec domain.AttemptRecord) (Outcome, error)
}

// SessionStore authorizes session tokens and keeps resume state next to
// them. OnRevoke must report every token the store deletes.
type SessionStore interface {
	Validate(ctx context.Context, token string) (TokenStatus, error)
	SaveSnapshot(ctx context.Context, token string, snapshot []byte) error
	Revoke(ctx context.Context, token string) error
	OnRevoke(fn func(token string))
}

// ExamService owns the live typing sessions, keyed by session token.
type ExamService struct {
	results  ResultPersister
	sessions SessionStore
	clock    typing.Clock

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	sess  *typing.Session
	ready chan struct{}

	mu        sync.Mutex
	watchers  map[chan struct{}]struct{}
	discarded bool
}

// discard closes every watcher channel so open streams notice the session
// is gone.
func (ls *liveSession) discard() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.discarded = true
	for ch := range ls.watchers {
		close(ch)
		delete(ls.watchers, ch)
	}
}

func (ls *liveSession) broadcast() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ch := range ls.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// NewExamService creates a new ExamService. A nil clock uses wall time. The
// service discards the live session of every token the store revokes.
func NewExamService(results ResultPersister, sessions SessionStore, clock typing.Clock) *ExamService {
	if clock == nil {
		clock = typing.SystemClock{}
	}
	e := &ExamService{
		results:  results,
		sessions: sessions,
		clock:    clock,
		live:     make(map[string]*liveSession),
	}
	sessions.OnRevoke(e.Discard)
	return e
}

// Open returns the live typing session for an admitted student, creating and
// binding it on first use. A resumed admission without a live session is
// restored from its stored snapshot; stale snapshots are discarded.
func (e *ExamService) Open(ctx context.Context, adm Admission) (*typing.Session, error) {
	if adm.Route != RouteTest || adm.Content == nil || adm.Student == nil {
		return nil, fmt.Errorf("%w: admission does not grant the test", domain.ErrUnauthorized)
	}
	content := typing.Content{ID: adm.Content.ID, Text: adm.Content.Text}
	limit := adm.TimeLimit.DurationSeconds

	e.mu.Lock()
	if ls, ok := e.live[adm.Token]; ok {
		e.mu.Unlock()
		select {
		case <-ls.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ls.sess.Bind(content, limit)
		return ls.sess, nil
	}

	ls := &liveSession{ready: make(chan struct{}), watchers: make(map[chan struct{}]struct{})}
	ls.sess = typing.NewSession(
		e.recorder(adm.Token, adm.Student.ID, ls),
		typing.WithClock(e.clock),
		typing.WithOnChange(e.onChange(adm.Token, ls)),
	)
	e.live[adm.Token] = ls
	metrics.ActiveSessions.Inc()
	e.mu.Unlock()

	// Resume may finish the session immediately, and the recorder then
	// releases it, so this runs without e.mu held.
	defer close(ls.ready)
	ls.sess.Bind(content, limit)
	if adm.Resumed && len(adm.Snapshot) > 0 {
		e.resume(ctx, adm.Token, ls.sess, adm.Snapshot)
	}
	return ls.sess, nil
}

func (e *ExamService) resume(ctx context.Context, token string, sess *typing.Session, data []byte) {
	snap, err := typing.ParseSnapshot(data)
	if err == nil {
		err = sess.Resume(snap)
	}
	if err == nil {
		slog.Info("typing session resumed", "content_id", snap.ContentID, "phase", snap.Phase)
		return
	}

	slog.Warn("discarding typing snapshot", "error", err)
	if err := e.sessions.SaveSnapshot(ctx, token, nil); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Error("clear typing snapshot", "error", err)
	}
}

// onChange persists every accepted transition and wakes the watchers. It
// runs under the session lock, so writes for one session are serialized in
// order.
func (e *ExamService) onChange(token string, ls *liveSession) func(typing.Snapshot) {
	return func(snap typing.Snapshot) {
		defer ls.broadcast()
		data, err := snap.Marshal()
		if err != nil {
			slog.Error("marshal typing snapshot", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.sessions.SaveSnapshot(ctx, token, data); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.Error("save typing snapshot", "error", err)
		}
	}
}

// recorder persists a finished result. A stored or duplicate result ends the
// student's session; a transport failure keeps it so the save can be retried.
func (e *ExamService) recorder(token string, studentID int64, ls *liveSession) typing.Recorder {
	return typing.RecorderFunc(func(ctx context.Context, r typing.Result) (typing.Outcome, error) {
		out, err := e.results.Persist(ctx, domain.AttemptRecord{
			StudentID: studentID,
			ContentID: r.ContentID,
			Symbols:   r.CorrectChars,
			Seconds:   r.Seconds,
			Accuracy:  r.Accuracy,
			WPM:       r.WPM,
			Text:      r.Text,
		})
		if err != nil {
			slog.Error("persist result", "student_id", studentID, "content_id", r.ContentID, "error", err)
			return typing.Outcome{}, err
		}

		slog.Info("result submitted",
			"student_id", studentID,
			"content_id", r.ContentID,
			"reason", r.Reason,
			"wpm", r.WPM,
			"accuracy", r.Accuracy,
			"success", out.Success,
		)

		if out.Success || out.Message == MsgAlreadyAttempted {
			// Released first so the revocation does not abandon this session.
			e.release(token, ls)
			if err := e.sessions.Revoke(ctx, token); err != nil {
				slog.Error("revoke session after submission", "error", err)
			}
		}
		return typing.Outcome{Success: out.Success, Message: out.Message}, nil
	})
}

func (e *ExamService) release(token string, ls *liveSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.live[token]; ok && cur == ls {
		delete(e.live, token)
		metrics.ActiveSessions.Dec()
	}
}

// Discard abandons token's live session without submitting it. Unknown
// tokens are ignored.
func (e *ExamService) Discard(token string) {
	e.mu.Lock()
	ls, ok := e.live[token]
	if ok {
		delete(e.live, token)
		metrics.ActiveSessions.Dec()
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	<-ls.ready
	ls.sess.Abandon()
	ls.discard()
	slog.Info("typing session discarded", "phase", ls.sess.View().Phase)
}

// lookup returns token's live session once the token is confirmed to be
// still valid. A revoked or expired token discards the session.
func (e *ExamService) lookup(ctx context.Context, token string) (*liveSession, error) {
	e.mu.Lock()
	ls, ok := e.live[token]
	e.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	status, err := e.sessions.Validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	if !status.Valid {
		e.Discard(token)
		return nil, ErrNoSession
	}
	select {
	case <-ls.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return ls, nil
}

// Session returns the live session for token.
func (e *ExamService) Session(ctx context.Context, token string) (*typing.Session, error) {
	ls, err := e.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return ls.sess, nil
}

// Watch subscribes to token's session. The channel receives a value after
// every accepted transition; bursts are coalesced. It is closed when the
// session is discarded. Call stop to unsubscribe.
func (e *ExamService) Watch(ctx context.Context, token string) (sess *typing.Session, changes <-chan struct{}, stop func(), err error) {
	ls, err := e.lookup(ctx, token)
	if err != nil {
		return nil, nil, nil, err
	}
	ch := make(chan struct{}, 1)
	ls.mu.Lock()
	if ls.discarded {
		ls.mu.Unlock()
		return nil, nil, nil, ErrNoSession
	}
	ls.watchers[ch] = struct{}{}
	ls.mu.Unlock()

	stop = func() {
		ls.mu.Lock()
		delete(ls.watchers, ch)
		ls.mu.Unlock()
	}
	return ls.sess, ch, stop, nil
}

// Start begins the countdown for token's session.
func (e *ExamService) Start(ctx context.Context, token string) (typing.View, error) {
	sess, err := e.Session(ctx, token)
	if err != nil {
		return typing.View{}, err
	}
	sess.Start()
	return sess.View(), nil
}

// Input applies the new input field contents to token's session.
func (e *ExamService) Input(ctx context.Context, token, text string) (typing.View, error) {
	sess, err := e.Session(ctx, token)
	if err != nil {
		return typing.View{}, err
	}
	sess.Input(text)
	return sess.View(), nil
}

// View returns the state of token's session.
func (e *ExamService) View(ctx context.Context, token string) (typing.View, error) {
	sess, err := e.Session(ctx, token)
	if err != nil {
		return typing.View{}, err
	}
	return sess.View(), nil
}

// RetrySave re-submits a finished result whose save failed.
func (e *ExamService) RetrySave(ctx context.Context, token string) (typing.View, error) {
	sess, err := e.Session(ctx, token)
	if err != nil {
		return typing.View{}, err
	}
	if _, err := sess.RetrySave(ctx); err != nil {
		return sess.View(), err
	}
	return sess.View(), nil
}

// Live returns the number of live sessions.
func (e *ExamService) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

// Close cancels every live session's countdown without submitting.
func (e *ExamService) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for token, ls := range e.live {
		ls.sess.Close()
		delete(e.live, token)
		metrics.ActiveSessions.Dec()
	}
}
