// Package view holds the templ components rendered by the handlers. Pages
// are full documents; Timer, Preview, Status and ContentCheck are also sent
// on their own as Datastar fragments.
package view

//go:generate templ generate

import (
	"encoding/json"
	"fmt"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/typing"
)

// Element IDs patched over SSE.
const (
	TimerID        = "timer"
	PreviewID      = "preview"
	StatusID       = "status"
	ContentCheckID = "content-check"
)

// Submission statuses shown on the submitted page.
const (
	SubmittedRecorded  = "recorded"
	SubmittedDuplicate = "duplicate"
)

const timeLayout = "2006-01-02 15:04"

// Timer turns red at or below this many seconds.
const lowSeconds = 10

var difficulties = []string{"easy", "medium", "hard"}

// Nav describes the header of a page.
type Nav struct {
	// Name is shown in the header when someone is signed in.
	Name string
	// LogoutAction is the form action of the sign-out button.
	LogoutAction string
	Admin        bool
}

func adminNav(name string) Nav {
	return Nav{Name: name, LogoutAction: "/admin/logout", Admin: true}
}

// Flash carries the outcome of a form submission.
type Flash struct {
	Error  string
	Notice string
}

// DashboardStats summarizes the exam for the admin dashboard.
type DashboardStats struct {
	Students         int
	Attempts         int
	LiveSessions     int
	TimeLimitSeconds int
	Active           *domain.TestContent
}

// ContentForm is the state of the paragraph upload form.
type ContentForm struct {
	Text       string
	Difficulty string
	Flash
}

func (f ContentForm) selected(d string) bool {
	if f.Difficulty == "" {
		return d == domain.DefaultDifficulty
	}
	return d == f.Difficulty
}

func (f ContentForm) signals() string {
	return signals(map[string]any{"text": f.Text})
}

// TestSignals are the Datastar signals of the test page.
func TestSignals(v typing.View) map[string]any {
	return map[string]any{
		"input": v.Input,
		"phase": string(v.Phase),
	}
}

// signals encodes Datastar signals for a data-signals attribute.
func signals(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func clock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// timerSeconds is the full duration before the start, then the time left.
func timerSeconds(v typing.View) int {
	if v.Phase == typing.PhaseNotStarted {
		return v.Duration
	}
	return v.RemainingSeconds
}

func timerLow(v typing.View) bool {
	return v.Phase == typing.PhaseRunning && v.RemainingSeconds <= lowSeconds
}

func submittedText(status string) string {
	if status == SubmittedDuplicate {
		return "A result for this test was already recorded."
	}
	return "Your result has been recorded."
}

// span is a run of target characters sharing one highlight class.
type span struct {
	Class string
	Text  string
}

// previewSpans groups the target into runs of equally marked characters.
func previewSpans(v typing.View) []span {
	input := []rune(v.Input)
	var (
		out []span
		buf []rune
	)
	for i, r := range []rune(v.Target) {
		c := charClass(i, r, input, v.ErrorIndex, v.Phase)
		if len(out) > 0 && out[len(out)-1].Class == c {
			buf = append(buf, r)
			out[len(out)-1].Text = string(buf)
			continue
		}
		buf = []rune{r}
		out = append(out, span{Class: c, Text: string(r)})
	}
	return out
}

func charClass(i int, r rune, input []rune, errorIndex int, phase typing.Phase) string {
	switch {
	case i == errorIndex:
		return "lock"
	case i < len(input) && input[i] == r:
		return "ok"
	case i < len(input):
		return "bad"
	case i == len(input) && phase == typing.PhaseRunning:
		return "cur"
	}
	return ""
}
