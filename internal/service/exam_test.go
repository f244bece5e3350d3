package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/repository/sqlite"
	"github.com/msomdec/typing-exam/internal/service"
	"github.com/msomdec/typing-exam/internal/typing"
)

type examFixture struct {
	db       *sqlite.DB
	students *service.StudentService
	sessions *service.SessionService
	contents *service.ContentService
	results  *service.ResultService
	gate     *service.Gate
	clock    *typing.ManualClock
}

func newExamFixture(t *testing.T, text string) *examFixture {
	t.Helper()
	db := newTestDB(t)
	f := &examFixture{db: db, clock: typing.NewManualClock()}
	f.sessions = service.NewSessionService(db.Sessions(), time.Hour)
	f.students = service.NewStudentService(db.Students(), f.sessions, testBcryptCost)
	f.contents = service.NewContentService(db.Contents(), db.Settings())
	f.results = service.NewResultService(db.Attempts(), db.Contents(), nil)
	f.gate = service.NewGate(f.sessions, f.students, f.contents, f.results)

	ctx := context.Background()
	if _, err := f.students.Create(ctx, "Ada", "APP-1", "2005-01-01"); err != nil {
		t.Fatalf("Create student: %v", err)
	}
	if _, err := f.contents.Publish(ctx, text, ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return f
}

func (f *examFixture) login(t *testing.T) string {
	t.Helper()
	_, tok, err := f.students.Login(context.Background(), "APP-1", "2005-01-01")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return tok.Token
}

func TestExamService_CompleteAndRecord(t *testing.T) {
	f := newExamFixture(t, "cat")
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	ctx := context.Background()
	token := f.login(t)

	adm := f.gate.Admit(ctx, token)
	if adm.Route != service.RouteTest {
		t.Fatalf("Route = %s, want test", adm.Route)
	}
	if _, err := exam.Open(ctx, adm); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := exam.Start(ctx, token); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var v typing.View
	for _, s := range []string{"c", "ca", "cat"} {
		var err error
		if v, err = exam.Input(ctx, token, s); err != nil {
			t.Fatalf("Input(%q): %v", s, err)
		}
	}

	if v.Phase != typing.PhaseFinished || !v.Save.Confirmed() || !v.Save.Outcome.Success {
		t.Fatalf("view = %+v, want finished with confirmed save", v)
	}
	if exam.Live() != 0 {
		t.Errorf("live sessions = %d, want 0 after a recorded result", exam.Live())
	}

	status, err := f.sessions.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if status.Valid {
		t.Error("session token should be deleted after submission")
	}

	rows, err := f.results.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].WPM != 36 || rows[0].Accuracy != 100 || rows[0].Symbols != 3 {
		t.Fatalf("stored attempts = %+v", rows)
	}

	// Logging in again lands on the already-attempted page and never reaches
	// the typing session.
	token = f.login(t)
	adm = f.gate.Admit(ctx, token)
	if adm.Route != service.RouteAlreadyAttempted {
		t.Fatalf("Route = %s, want already_attempted", adm.Route)
	}
	if _, err := exam.Open(ctx, adm); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Open on ineligible admission: expected ErrUnauthorized, got %v", err)
	}
	if _, err := exam.Start(ctx, token); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("Start: expected ErrNoSession, got %v", err)
	}
}

func TestExamService_OpenSharesLiveSession(t *testing.T) {
	f := newExamFixture(t, "cat")
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	defer exam.Close()
	ctx := context.Background()
	token := f.login(t)
	adm := f.gate.Admit(ctx, token)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		found = map[*typing.Session]bool{}
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := exam.Open(ctx, adm)
			if err != nil {
				t.Errorf("Open: %v", err)
				return
			}
			mu.Lock()
			found[sess] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(found) != 1 || exam.Live() != 1 {
		t.Fatalf("distinct sessions = %d, live = %d, want 1/1", len(found), exam.Live())
	}
}

func TestExamService_ResumeAfterRestart(t *testing.T) {
	f := newExamFixture(t, "hello")
	ctx := context.Background()
	token := f.login(t)

	first := service.NewExamService(f.results, f.sessions, f.clock)
	if _, err := first.Open(ctx, f.gate.Admit(ctx, token)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Start(ctx, token)
	sess, _ := first.Session(ctx, token)
	sess.Tick()
	first.Input(ctx, token, "he")
	first.Input(ctx, token, "hex")
	first.Close()

	// A new process: the latch is set, so the gate reports a resume and the
	// snapshot saved with the token restores the session.
	second := service.NewExamService(f.results, f.sessions, f.clock)
	defer second.Close()
	adm := f.gate.Admit(ctx, token)
	if !adm.Resumed {
		t.Fatal("expected a resumed admission")
	}
	restored, err := second.Open(ctx, adm)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	v := restored.View()
	if v.Phase != typing.PhaseRunning || v.Input != "hex" || v.ErrorIndex != 2 || v.ElapsedSeconds != 1 {
		t.Fatalf("restored view = %+v", v)
	}
}

func TestExamService_StaleSnapshotDiscarded(t *testing.T) {
	f := newExamFixture(t, "hello")
	ctx := context.Background()
	token := f.login(t)

	first := service.NewExamService(f.results, f.sessions, f.clock)
	first.Open(ctx, f.gate.Admit(ctx, token))
	first.Start(ctx, token)
	first.Input(ctx, token, "he")
	first.Close()

	// The admin replaces the passage while the student is away.
	if _, err := f.contents.Publish(ctx, "world", ""); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	second := service.NewExamService(f.results, f.sessions, f.clock)
	defer second.Close()
	sess, err := second.Open(ctx, f.gate.Admit(ctx, token))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v := sess.View()
	if v.Phase != typing.PhaseNotStarted || v.Input != "" || v.Target != "world" {
		t.Fatalf("view = %+v, want a fresh session on the new passage", v)
	}

	stored, err := f.db.Sessions().GetByToken(ctx, token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if len(stored.Snapshot) != 0 {
		t.Errorf("stale snapshot should be cleared, got %q", stored.Snapshot)
	}
}

type flakyPersister struct {
	mu    sync.Mutex
	fail  bool
	inner service.ResultPersister
}

func (p *flakyPersister) Persist(ctx context.Context, rec domain.AttemptRecord) (service.Outcome, error) {
	p.mu.Lock()
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return service.Outcome{}, errors.New("database is locked")
	}
	return p.inner.Persist(ctx, rec)
}

func TestExamService_SaveFailureKeepsSessionForRetry(t *testing.T) {
	f := newExamFixture(t, "cat")
	persister := &flakyPersister{fail: true, inner: f.results}
	exam := service.NewExamService(persister, f.sessions, f.clock)
	ctx := context.Background()
	token := f.login(t)

	exam.Open(ctx, f.gate.Admit(ctx, token))
	exam.Start(ctx, token)
	v, _ := exam.Input(ctx, token, "cat")

	if v.Phase != typing.PhaseFinished || v.Save.Confirmed() {
		t.Fatalf("view = %+v, want finished with an unconfirmed save", v)
	}
	if exam.Live() != 1 {
		t.Fatal("session must stay live after a failed save")
	}
	status, _ := f.sessions.Validate(ctx, token)
	if !status.Valid {
		t.Fatal("token must be kept after a failed save")
	}

	persister.mu.Lock()
	persister.fail = false
	persister.mu.Unlock()

	v, err := exam.RetrySave(ctx, token)
	if err != nil {
		t.Fatalf("RetrySave: %v", err)
	}
	if !v.Save.Confirmed() || !v.Save.Outcome.Success {
		t.Fatalf("view after retry = %+v", v.Save)
	}
	if exam.Live() != 0 {
		t.Errorf("live sessions = %d after a successful retry, want 0", exam.Live())
	}
}

func TestExamService_TimeoutRecordsPartialResult(t *testing.T) {
	f := newExamFixture(t, "cat")
	ctx := context.Background()
	if err := f.contents.SetTimeLimit(ctx, 10); err != nil {
		t.Fatalf("SetTimeLimit: %v", err)
	}
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	token := f.login(t)

	sess, err := exam.Open(ctx, f.gate.Admit(ctx, token))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exam.Start(ctx, token)
	exam.Input(ctx, token, "c")
	for range 10 {
		sess.Tick()
	}

	select {
	case <-sess.Done():
	default:
		t.Fatal("session should be done after the countdown")
	}
	rows, err := f.results.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].Seconds != 10 || rows[0].Text != "c" {
		t.Fatalf("stored attempts = %+v", rows)
	}
	if f.clock.Active() != 0 {
		t.Errorf("active tickers = %d, want 0", f.clock.Active())
	}
}

func TestExamService_WatchReceivesTransitions(t *testing.T) {
	f := newExamFixture(t, "cat")
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	defer exam.Close()
	ctx := context.Background()
	token := f.login(t)

	if _, err := exam.Open(ctx, f.gate.Admit(ctx, token)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	sess, changes, stop, err := exam.Watch(ctx, token)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	exam.Start(ctx, token)
	select {
	case <-changes:
	default:
		t.Fatal("expected a change after Start")
	}

	sess.Tick()
	select {
	case <-changes:
	default:
		t.Fatal("expected a change after Tick")
	}

	// A rejected input is not a transition.
	exam.Input(ctx, token, "x")
	<-changes
	exam.Input(ctx, token, "xy")
	select {
	case <-changes:
		t.Fatal("rejected input must not notify")
	default:
	}

	if _, _, _, err := exam.Watch(ctx, "unknown"); !errors.Is(err, service.ErrNoSession) {
		t.Errorf("Watch(unknown): expected ErrNoSession, got %v", err)
	}
}

func TestExamService_LogoutDiscardsLiveSession(t *testing.T) {
	f := newExamFixture(t, "cat")
	ctx := context.Background()
	if err := f.contents.SetTimeLimit(ctx, 10); err != nil {
		t.Fatalf("SetTimeLimit: %v", err)
	}
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	token := f.login(t)

	sess, err := exam.Open(ctx, f.gate.Admit(ctx, token))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, changes, stop, err := exam.Watch(ctx, token)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()
	exam.Start(ctx, token)
	exam.Input(ctx, token, "c")

	if err := f.students.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if exam.Live() != 0 {
		t.Fatalf("live sessions = %d after logout, want 0", exam.Live())
	}
	if f.clock.Active() != 0 {
		t.Errorf("active tickers = %d after logout, want 0", f.clock.Active())
	}
	for range len(changes) {
		<-changes
	}
	if _, ok := <-changes; ok {
		t.Error("watch channel should be closed after logout")
	}
	if _, err := exam.Input(ctx, token, "ca"); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("Input after logout: expected ErrNoSession, got %v", err)
	}

	// The abandoned countdown never reaches a submission.
	for range 10 {
		sess.Tick()
	}
	sess.Input("ca")
	if v := sess.View(); v.Submitted || v.Input != "c" {
		t.Fatalf("abandoned session moved on: %+v", v)
	}
	rows, err := f.results.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("stored attempts = %+v, want none", rows)
	}
}

func TestExamService_NewLoginDiscardsPreviousSession(t *testing.T) {
	f := newExamFixture(t, "cat")
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	defer exam.Close()
	ctx := context.Background()
	first := f.login(t)

	old, err := exam.Open(ctx, f.gate.Admit(ctx, first))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exam.Start(ctx, first)
	exam.Input(ctx, first, "c")

	second := f.login(t)
	if exam.Live() != 0 {
		t.Fatalf("live sessions = %d after a new login, want 0", exam.Live())
	}
	if _, err := exam.Input(ctx, first, "ca"); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("Input with the replaced token: expected ErrNoSession, got %v", err)
	}
	if old.Finish(typing.ReasonTimeout) {
		t.Fatal("the replaced session must not finish")
	}

	// The new token opens a fresh session.
	adm := f.gate.Admit(ctx, second)
	if adm.Route != service.RouteTest {
		t.Fatalf("Route = %s, want test", adm.Route)
	}
	sess, err := exam.Open(ctx, adm)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sess == old {
		t.Fatal("a new token must not reuse the discarded session")
	}
}

func TestExamService_RevokedTokenRejectedWithoutNotification(t *testing.T) {
	f := newExamFixture(t, "cat")
	exam := service.NewExamService(f.results, f.sessions, f.clock)
	defer exam.Close()
	ctx := context.Background()
	token := f.login(t)

	if _, err := exam.Open(ctx, f.gate.Admit(ctx, token)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Deleted behind the service's back, for example by another process.
	if err := f.db.Sessions().Delete(ctx, token); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := exam.Start(ctx, token); !errors.Is(err, service.ErrNoSession) {
		t.Fatalf("Start with a deleted token: expected ErrNoSession, got %v", err)
	}
	if exam.Live() != 0 {
		t.Errorf("live sessions = %d, want 0", exam.Live())
	}
}

func TestExamService_FinishedSnapshotCanBeSavedAfterRestart(t *testing.T) {
	f := newExamFixture(t, "cat")
	ctx := context.Background()
	token := f.login(t)

	persister := &flakyPersister{fail: true, inner: f.results}
	first := service.NewExamService(persister, f.sessions, f.clock)
	first.Open(ctx, f.gate.Admit(ctx, token))
	first.Start(ctx, token)
	if v, _ := first.Input(ctx, token, "cat"); v.Phase != typing.PhaseFinished || v.Save.Confirmed() {
		t.Fatalf("view = %+v, want finished with a failed save", v)
	}
	first.Close()

	second := service.NewExamService(f.results, f.sessions, f.clock)
	adm := f.gate.Admit(ctx, token)
	if !adm.Resumed {
		t.Fatal("expected a resumed admission")
	}
	sess, err := second.Open(ctx, adm)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v := sess.View()
	if v.Phase != typing.PhaseFinished || v.Result == nil || v.Save.Attempted || v.Saving {
		t.Fatalf("restored view = %+v, want finished and waiting for a save", v)
	}

	v, err = second.RetrySave(ctx, token)
	if err != nil {
		t.Fatalf("RetrySave: %v", err)
	}
	if !v.Save.Confirmed() || !v.Save.Outcome.Success {
		t.Fatalf("save after restart = %+v", v.Save)
	}
	rows, err := f.results.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].Text != "cat" {
		t.Fatalf("stored attempts = %+v", rows)
	}
}
