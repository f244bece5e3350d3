package view_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/msomdec/typing-exam/internal/domain"
	"github.com/msomdec/typing-exam/internal/textcheck"
	"github.com/msomdec/typing-exam/internal/typing"
	"github.com/msomdec/typing-exam/internal/view"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return sb.String()
}

func TestPreview_MarksCharacters(t *testing.T) {
	html := render(t, view.Preview(typing.View{
		Target:     "cats",
		Input:      "cx",
		ErrorIndex: 1,
		Phase:      typing.PhaseRunning,
	}))

	for _, want := range []string{
		`<span class="ok">c</span>`,
		`<span class="lock">a</span>`,
		`<span class="cur">t</span>`,
		`<span>s</span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("preview missing %s in %s", want, html)
		}
	}
}

func TestPreview_EscapesText(t *testing.T) {
	html := render(t, view.Preview(typing.View{Target: "<b>&", ErrorIndex: -1, Phase: typing.PhaseNotStarted}))
	if strings.Contains(html, "<b>") {
		t.Fatalf("target text was not escaped: %s", html)
	}
	if !strings.Contains(html, "&lt;b&gt;&amp;") {
		t.Errorf("escaped text missing: %s", html)
	}
}

func TestTimer(t *testing.T) {
	tests := []struct {
		name string
		v    typing.View
		want string
		low  bool
	}{
		{"not started shows duration", typing.View{Duration: 90, RemainingSeconds: 0, Phase: typing.PhaseNotStarted}, "1:30", false},
		{"running", typing.View{Duration: 60, RemainingSeconds: 42, Phase: typing.PhaseRunning}, "0:42", false},
		{"running low", typing.View{Duration: 60, RemainingSeconds: 9, Phase: typing.PhaseRunning}, "0:09", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			html := render(t, view.Timer(tc.v))
			if !strings.Contains(html, tc.want) {
				t.Errorf("timer = %s, want %s", html, tc.want)
			}
			if got := strings.Contains(html, `class="low"`); got != tc.low {
				t.Errorf("low = %v, want %v", got, tc.low)
			}
		})
	}
}

func TestStatus_SaveFailureOffersRetry(t *testing.T) {
	html := render(t, view.Status(typing.View{
		Phase:  typing.PhaseFinished,
		Result: &typing.Result{Metrics: typing.Metrics{WPM: 40, Accuracy: 95}},
		Save:   typing.SaveState{Attempted: true, Err: errors.New("offline")},
	}))
	if !strings.Contains(html, "/test/retry-save") {
		t.Errorf("expected a retry button: %s", html)
	}
	if !strings.Contains(html, "40 WPM") {
		t.Errorf("expected the score: %s", html)
	}
}

func TestStatus_Duplicate(t *testing.T) {
	html := render(t, view.Status(typing.View{
		Phase: typing.PhaseFinished,
		Save:  typing.SaveState{Attempted: true, Outcome: typing.Outcome{Message: "Attempt blocked: Already attempted."}},
	}))
	if !strings.Contains(html, "Already attempted") || strings.Contains(html, "retry-save") {
		t.Errorf("status = %s", html)
	}
}

func TestStatus_RestoredUnsavedOffersRetry(t *testing.T) {
	html := render(t, view.Status(typing.View{
		Phase:  typing.PhaseFinished,
		Result: &typing.Result{Metrics: typing.Metrics{WPM: 40, Accuracy: 95}},
	}))
	if !strings.Contains(html, "/test/retry-save") {
		t.Errorf("expected a retry button: %s", html)
	}
	if strings.Contains(html, "Submitting") {
		t.Errorf("unsaved result must not look in flight: %s", html)
	}
}

func TestStatus_Saving(t *testing.T) {
	html := render(t, view.Status(typing.View{
		Phase:  typing.PhaseFinished,
		Result: &typing.Result{Metrics: typing.Metrics{WPM: 40, Accuracy: 95}},
		Saving: true,
	}))
	if !strings.Contains(html, "Submitting your result") || strings.Contains(html, "retry-save") {
		t.Errorf("status = %s", html)
	}
}

func TestPage_LogoutForm(t *testing.T) {
	html := render(t, view.NoTestPage("Ada"))
	if !strings.Contains(html, `action="/logout"`) || !strings.Contains(html, "Ada") {
		t.Errorf("page = %s", html)
	}
	html = render(t, view.LoginPage("", ""))
	if strings.Contains(html, `action="/logout"`) {
		t.Errorf("signed-out page shows a logout form: %s", html)
	}
}

func TestErrorPage(t *testing.T) {
	html := render(t, view.ErrorPage(404, "Not found", "No such page <here>."))
	if !strings.Contains(html, "Error 404") || !strings.Contains(html, "No such page &lt;here&gt;.") {
		t.Errorf("page = %s", html)
	}
}

func TestTestPage_Signals(t *testing.T) {
	html := render(t, view.TestPage("Ada", typing.View{
		Target:     "cat",
		Input:      "c",
		ErrorIndex: -1,
		Phase:      typing.PhaseRunning,
		Duration:   60,
	}))
	if !strings.Contains(html, `data-signals="{&#34;input&#34;:&#34;c&#34;,&#34;phase&#34;:&#34;running&#34;}"`) {
		t.Errorf("signals not rendered: %s", html)
	}
	if !strings.Contains(html, "@get('/test/stream')") {
		t.Error("page must open the countdown stream")
	}
}

func TestContentCheck(t *testing.T) {
	html := render(t, view.ContentCheck(textcheck.Validate("café")))
	if !strings.Contains(html, `class="error"`) || !strings.Contains(html, "é") {
		t.Errorf("check = %s", html)
	}
}

func TestResultsPage(t *testing.T) {
	rows := []domain.AttemptRow{{
		AttemptRecord:     domain.AttemptRecord{ContentID: 3, WPM: 52, Accuracy: 97, Symbols: 120, OriginalLength: 130, Seconds: 60},
		StudentName:       "Ada <Lovelace>",
		ApplicationNumber: "APP-1",
	}}
	html := render(t, view.ResultsPage("Admin", rows))
	if !strings.Contains(html, "Ada &lt;Lovelace&gt;") || !strings.Contains(html, "120 / 130") {
		t.Errorf("results = %s", html)
	}
}
