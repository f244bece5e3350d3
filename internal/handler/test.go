package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/typing-exam/internal/service"
	"github.com/msomdec/typing-exam/internal/typing"
	"github.com/msomdec/typing-exam/internal/view"
)

// TestHandler serves the typing test. The gate runs once per page load on
// GET /test; the Datastar endpoints only act on the live session that load
// opened for the cookie's token, and only while that token is still valid.
type TestHandler struct {
	gate    *service.Gate
	exam    *service.ExamService
	cookies *Cookies
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(gate *service.Gate, exam *service.ExamService, cookies *Cookies) *TestHandler {
	return &TestHandler{gate: gate, exam: exam, cookies: cookies}
}

// HandleTest admits the student and renders the test page.
// GET /test
func (h *TestHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	adm := h.gate.Admit(r.Context(), h.cookies.Session(r))
	if adm.ClearSession {
		h.cookies.ClearSession(w)
	}

	switch adm.Route {
	case service.RouteAlreadyAttempted:
		http.Redirect(w, r, "/already-attempted", http.StatusSeeOther)
		return
	case service.RouteNoTest:
		view.NoTestPage(adm.Student.Name).Render(r.Context(), w)
		return
	case service.RouteTest:
	default:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	sess, err := h.exam.Open(r.Context(), adm)
	if err != nil {
		slog.Error("open typing session", "student_id", adm.Student.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		view.ErrorPage(http.StatusInternalServerError, "Something went wrong", "The test could not be opened. Please reload the page.").Render(r.Context(), w)
		return
	}

	v := sess.View()
	if target := submittedURL(v); target != "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	view.TestPage(adm.Student.Name, v).Render(r.Context(), w)
}

// HandleStart starts the countdown.
// POST /test/start
func (h *TestHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	v, err := h.exam.Start(r.Context(), h.cookies.Session(r))
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.lost(sse, err)
		return
	}
	h.patch(sse, v)
	sse.MarshalAndPatchSignals(view.TestSignals(v))
}

// HandleInput applies the current contents of the input field. A rejected
// candidate puts the field back to the accepted input.
// POST /test/input
func (h *TestHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	var signals struct {
		Input string `json:"input"`
	}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	v, err := h.exam.Input(r.Context(), h.cookies.Session(r), signals.Input)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.lost(sse, err)
		return
	}
	if h.patch(sse, v) {
		return
	}
	if v.Input != signals.Input || v.Phase != typing.PhaseRunning {
		sse.MarshalAndPatchSignals(view.TestSignals(v))
	}
}

// HandleStream pushes the countdown until the session finishes, then sends
// the browser on once the result is recorded.
// GET /test/stream
func (h *TestHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sess, changes, stop, err := h.exam.Watch(r.Context(), h.cookies.Session(r))
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.lost(sse, err)
		return
	}
	defer stop()

	if err := sse.PatchElementTempl(view.Timer(sess.View()), datastar.WithSelectorID(view.TimerID)); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			v := sess.View()
			h.patch(sse, v)
			sse.MarshalAndPatchSignals(view.TestSignals(v))
			return
		case _, ok := <-changes:
			if !ok {
				h.lost(sse, service.ErrNoSession)
				return
			}
			v := sess.View()
			if err := sse.PatchElementTempl(view.Timer(v), datastar.WithSelectorID(view.TimerID)); err != nil {
				return
			}
			if v.Phase == typing.PhaseFinished {
				if err := sse.PatchElementTempl(view.Status(v), datastar.WithSelectorID(view.StatusID)); err != nil {
					return
				}
			}
		}
	}
}

// HandleRetrySave re-submits a result whose save failed.
// POST /test/retry-save
func (h *TestHandler) HandleRetrySave(w http.ResponseWriter, r *http.Request) {
	v, err := h.exam.RetrySave(r.Context(), h.cookies.Session(r))
	sse := datastar.NewSSE(w, r)
	switch {
	case errors.Is(err, service.ErrNoSession):
		h.lost(sse, err)
		return
	case errors.Is(err, typing.ErrSaving), errors.Is(err, typing.ErrNotFinished):
		sse.PatchElementTempl(view.Status(v), datastar.WithSelectorID(view.StatusID))
		return
	case err != nil:
		slog.Error("retry save", "error", err)
	}
	h.patch(sse, v)
}

// HandleSubmitted confirms the submission. The session token was deleted
// when the result was recorded, so the cookie goes too.
// GET /test-submitted
func (h *TestHandler) HandleSubmitted(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	status := view.SubmittedRecorded
	if r.URL.Query().Get("status") == view.SubmittedDuplicate {
		status = view.SubmittedDuplicate
	}
	view.SubmittedPage(status).Render(r.Context(), w)
}

// HandleAlreadyAttempted tells the student a result already exists.
// GET /already-attempted
func (h *TestHandler) HandleAlreadyAttempted(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	view.AlreadyAttemptedPage().Render(r.Context(), w)
}

// patch refreshes the test fragments, or redirects when the result has been
// recorded. It reports whether it redirected.
func (h *TestHandler) patch(sse *datastar.ServerSentEventGenerator, v typing.View) bool {
	if target := submittedURL(v); target != "" {
		sse.Redirect(target)
		return true
	}
	sse.PatchElementTempl(view.Timer(v), datastar.WithSelectorID(view.TimerID))
	sse.PatchElementTempl(view.Preview(v), datastar.WithSelectorID(view.PreviewID))
	sse.PatchElementTempl(view.Status(v), datastar.WithSelectorID(view.StatusID))
	return false
}

// lost handles a request whose live session is gone, for example after a
// restart, a logout, or once the result was recorded. Reloading the page runs the gate
// again, which either resumes the test or routes the student elsewhere.
func (h *TestHandler) lost(sse *datastar.ServerSentEventGenerator, err error) {
	if !errors.Is(err, service.ErrNoSession) {
		slog.Error("typing session", "error", err)
	}
	sse.Redirect("/test")
}

// submittedURL returns the terminal page for a session whose result the
// store has answered for, or "" while the student should stay on the test.
func submittedURL(v typing.View) string {
	if v.Phase != typing.PhaseFinished || !v.Save.Confirmed() {
		return ""
	}
	switch {
	case v.Save.Outcome.Success:
		return "/test-submitted?status=" + view.SubmittedRecorded
	case v.Save.Outcome.Message == service.MsgAlreadyAttempted:
		return "/test-submitted?status=" + view.SubmittedDuplicate
	}
	return ""
}
