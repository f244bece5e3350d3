package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/service"
	"github.com/msomdec/typing-exam/internal/textcheck"
	"github.com/msomdec/typing-exam/internal/view"
)

// maxImportSize bounds the student CSV upload.
const maxImportSize = 4 << 20

// AdminHandler serves the admin pages.
type AdminHandler struct {
	students *service.StudentService
	contents *service.ContentService
	results  *service.ResultService
	exam     *service.ExamService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(students *service.StudentService, contents *service.ContentService, results *service.ResultService, exam *service.ExamService) *AdminHandler {
	return &AdminHandler{students: students, contents: contents, results: results, exam: exam}
}

// HandleDashboard renders the admin overview.
// GET /admin
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	admin := AdminFromContext(r.Context())
	ctx := r.Context()

	students, err := h.students.List(ctx)
	if err != nil {
		serverError(w, r, "list students", err)
		return
	}
	rows, err := h.results.List(ctx)
	if err != nil {
		serverError(w, r, "list results", err)
		return
	}
	limit, err := h.contents.TimeLimit(ctx)
	if err != nil {
		serverError(w, r, "get time limit", err)
		return
	}
	active, err := h.contents.ActiveContent(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		serverError(w, r, "get active content", err)
		return
	}

	view.AdminDashboardPage(admin.DisplayName, view.DashboardStats{
		Students:         len(students),
		Attempts:         len(rows),
		LiveSessions:     h.exam.Live(),
		TimeLimitSeconds: limit.DurationSeconds,
		Active:           active,
	}).Render(ctx, w)
}

// HandleResults lists every recorded attempt.
// GET /admin/results
func (h *AdminHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	rows, err := h.results.List(r.Context())
	if err != nil {
		serverError(w, r, "list results", err)
		return
	}
	view.ResultsPage(AdminFromContext(r.Context()).DisplayName, rows).Render(r.Context(), w)
}

// HandleResultsJSON exports every recorded attempt.
// GET /admin/results.json
// Response: {"results": [...]}
func (h *AdminHandler) HandleResultsJSON(w http.ResponseWriter, r *http.Request) {
	rows, err := h.results.List(r.Context())
	if err != nil {
		slog.Error("list results", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": toResultDTOs(rows),
	})
}

// HandleContentPage renders the paragraph form.
// GET /admin/content
func (h *AdminHandler) HandleContentPage(w http.ResponseWriter, r *http.Request) {
	h.renderContent(w, r, view.ContentForm{})
}

// HandlePublish stores a new active paragraph.
// POST /admin/content
func (h *AdminHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	form := view.ContentForm{
		Text:       r.FormValue("text"),
		Difficulty: r.FormValue("difficulty"),
	}

	c, err := h.contents.Publish(r.Context(), form.Text, form.Difficulty)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			form.Error = err.Error()
			w.WriteHeader(http.StatusUnprocessableEntity)
			h.renderContent(w, r, form)
			return
		}
		serverError(w, r, "publish content", err)
		return
	}

	slog.Info("paragraph published", "content_id", c.ID, "difficulty", c.Difficulty, "length", len([]rune(c.Text)))
	h.renderContent(w, r, view.ContentForm{Flash: view.Flash{Notice: fmt.Sprintf("Paragraph #%d is now the active test.", c.ID)}})
}

// HandleContentCheck validates the paragraph while the admin types.
// POST /admin/content/check
func (h *AdminHandler) HandleContentCheck(w http.ResponseWriter, r *http.Request) {
	var signals struct {
		Text string `json:"text"`
	}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)
	sse.PatchElementTempl(
		view.ContentCheck(textcheck.Validate(strings.TrimSpace(signals.Text))),
		datastar.WithSelectorID(view.ContentCheckID),
	)
}

func (h *AdminHandler) renderContent(w http.ResponseWriter, r *http.Request, form view.ContentForm) {
	ctx := r.Context()
	active, err := h.contents.ActiveContent(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		serverError(w, r, "get active content", err)
		return
	}
	history, err := h.contents.List(ctx)
	if err != nil {
		serverError(w, r, "list content", err)
		return
	}
	view.ContentPage(AdminFromContext(ctx).DisplayName, active, history, form).Render(ctx, w)
}

// HandleStudentsPage renders the import form and the student list.
// GET /admin/students
func (h *AdminHandler) HandleStudentsPage(w http.ResponseWriter, r *http.Request) {
	h.renderStudents(w, r, view.Flash{})
}

// HandleImport imports students from an uploaded CSV file.
// POST /admin/students
func (h *AdminHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.renderStudents(w, r, view.Flash{Error: "Choose a CSV file to import."})
		return
	}
	defer file.Close()

	rep, err := h.students.Import(r.Context(), file)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			h.renderStudents(w, r, view.Flash{Error: err.Error()})
			return
		}
		serverError(w, r, "import students", err)
		return
	}

	slog.Info("students imported", "added", rep.Added, "skipped", rep.Skipped)
	h.renderStudents(w, r, view.Flash{Notice: fmt.Sprintf("Import finished: %d added, %d skipped.", rep.Added, rep.Skipped)})
}

func (h *AdminHandler) renderStudents(w http.ResponseWriter, r *http.Request, flash view.Flash) {
	students, err := h.students.List(r.Context())
	if err != nil {
		serverError(w, r, "list students", err)
		return
	}
	view.StudentsPage(AdminFromContext(r.Context()).DisplayName, students, flash).Render(r.Context(), w)
}

// HandleTimeLimitPage renders the time limit form.
// GET /admin/time-limit
func (h *AdminHandler) HandleTimeLimitPage(w http.ResponseWriter, r *http.Request) {
	h.renderTimeLimit(w, r, view.Flash{})
}

// HandleSetTimeLimit changes the time limit for sessions opened from now on.
// POST /admin/time-limit
func (h *AdminHandler) HandleSetTimeLimit(w http.ResponseWriter, r *http.Request) {
	seconds, err := strconv.Atoi(strings.TrimSpace(r.FormValue("seconds")))
	if err == nil {
		err = h.contents.SetTimeLimit(r.Context(), seconds)
	} else {
		err = fmt.Errorf("%w: time limit must be a whole number of seconds", domain.ErrInvalidInput)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			h.renderTimeLimit(w, r, view.Flash{Error: err.Error()})
			return
		}
		serverError(w, r, "set time limit", err)
		return
	}

	slog.Info("time limit changed", "seconds", seconds)
	h.renderTimeLimit(w, r, view.Flash{Notice: "Time limit saved."})
}

func (h *AdminHandler) renderTimeLimit(w http.ResponseWriter, r *http.Request, flash view.Flash) {
	limit, err := h.contents.TimeLimit(r.Context())
	if err != nil {
		serverError(w, r, "get time limit", err)
		return
	}
	view.TimeLimitPage(AdminFromContext(r.Context()).DisplayName, limit.DurationSeconds, flash).Render(r.Context(), w)
}

func serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op, "error", err)
	w.WriteHeader(http.StatusInternalServerError)
	view.ErrorPage(http.StatusInternalServerError, "Something went wrong", "An unexpected error occurred. Please try again.").Render(r.Context(), w)
}
