package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/metrics"
)

// GateState is the position of a request in the admission sequence.
type GateState string

const (
	GateUnauthenticated GateState = "unauthenticated"
	GateValidating      GateState = "validating"
	GateAuthorized      GateState = "authorized"
	GateTestActive      GateState = "test_active"
)

// Route tells the handler what to show for an admission.
type Route string

const (
	RouteLogin            Route = "login"
	RouteAlreadyAttempted Route = "already_attempted"
	RouteNoTest           Route = "no_test"
	RouteTest             Route = "test"
)

// Admission is the result of running the gate once for a page load.
type Admission struct {
	State     GateState
	Route     Route
	Token     string
	Student   *domain.Student
	Content   *domain.TestContent
	TimeLimit domain.TimeLimit
	// Resumed is set when the test-active latch was already set, meaning this
	// load is a reload of a test in progress.
	Resumed  bool
	Snapshot []byte
	// ClearSession asks the handler to drop the session cookie.
	ClearSession bool
}

// TokenValidator resolves and updates session tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (TokenStatus, error)
	SetTestActive(ctx context.Context, token string, active bool) error
	Revoke(ctx context.Context, token string) error
}

// StudentLookup finds students by ID.
type StudentLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Student, error)
}

// ContentSource provides the active passage and the time limit.
type ContentSource interface {
	ActiveContent(ctx context.Context) (*domain.TestContent, error)
	TimeLimit(ctx context.Context) (domain.TimeLimit, error)
}

// AttemptChecker reports whether a student already has a result for a passage.
type AttemptChecker interface {
	HasAttempted(ctx context.Context, studentID, contentID int64) (bool, error)
}

// Gate decides whether a student may open the test page. Every backend
// failure denies access.
type Gate struct {
	sessions TokenValidator
	students StudentLookup
	contents ContentSource
	attempts AttemptChecker
}

// NewGate creates a new Gate.
func NewGate(sessions TokenValidator, students StudentLookup, contents ContentSource, attempts AttemptChecker) *Gate {
	return &Gate{sessions: sessions, students: students, contents: contents, attempts: attempts}
}

// Admit runs the admission sequence for token: validate, check eligibility,
// then latch the test as active.
func (g *Gate) Admit(ctx context.Context, token string) Admission {
	adm := g.admit(ctx, token)
	metrics.GateDecisions.WithLabelValues(string(adm.State), string(adm.Route)).Inc()
	return adm
}

func (g *Gate) admit(ctx context.Context, token string) Admission {
	if token == "" {
		return deny()
	}

	// Validating.
	status, err := g.sessions.Validate(ctx, token)
	if err != nil {
		slog.Error("gate: validate token", "error", err)
		return deny()
	}
	if !status.Valid {
		if status.Expired {
			slog.Info("gate: session expired")
		}
		return deny()
	}
	sess := status.Session

	student, err := g.students.GetByID(ctx, sess.StudentID)
	if errors.Is(err, domain.ErrNotFound) {
		g.revoke(ctx, token)
		return deny()
	}
	if err != nil {
		slog.Error("gate: get student", "student_id", sess.StudentID, "error", err)
		return deny()
	}

	content, err := g.contents.ActiveContent(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return Admission{State: GateAuthorized, Route: RouteNoTest, Token: token, Student: student}
	}
	if err != nil {
		slog.Error("gate: get active content", "error", err)
		return deny()
	}

	attempted, err := g.attempts.HasAttempted(ctx, student.ID, content.ID)
	if err != nil {
		slog.Error("gate: check attempt", "student_id", student.ID, "error", err)
		return deny()
	}
	if attempted {
		g.revoke(ctx, token)
		return Admission{
			State:        GateUnauthenticated,
			Route:        RouteAlreadyAttempted,
			Student:      student,
			Content:      content,
			ClearSession: true,
		}
	}

	limit, err := g.contents.TimeLimit(ctx)
	if err != nil {
		slog.Error("gate: get time limit", "error", err)
		return deny()
	}

	adm := Admission{
		State:     GateTestActive,
		Route:     RouteTest,
		Token:     token,
		Student:   student,
		Content:   content,
		TimeLimit: limit,
	}

	if sess.TestActive {
		adm.Resumed = true
		adm.Snapshot = sess.Snapshot
		return adm
	}
	if err := g.sessions.SetTestActive(ctx, token, true); err != nil {
		slog.Error("gate: set test active", "student_id", student.ID, "error", err)
		return deny()
	}
	return adm
}

func (g *Gate) revoke(ctx context.Context, token string) {
	if err := g.sessions.Revoke(ctx, token); err != nil {
		slog.Error("gate: revoke session", "error", err)
	}
}

func deny() Admission {
	return Admission{State: GateUnauthenticated, Route: RouteLogin, ClearSession: true}
}
