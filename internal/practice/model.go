// Package practice provides a Bubble Tea client for rehearsing the typing
// test in a terminal. Results are shown on screen and never stored.
package practice

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/msomdec/typing-exam/internal/typing"
)

// refreshInterval is how often the view is redrawn so the countdown moves.
const refreshInterval = 200 * time.Millisecond

var (
	correctStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF4D4F"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cursorStyle  = pendingStyle.Underline(true)
	timerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	lowStyle     = timerStyle.Foreground(lipgloss.Color("#FF4D4F"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	resultStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A"))
)

type refreshMsg struct{}

// Model implements the Bubble Tea practice UI on top of a typing.Session.
type Model struct {
	text     string
	duration int
	clock    typing.Clock

	round int64
	sess  *typing.Session

	width  int
	height int
}

// NewModel constructs a practice model for text with a countdown of
// durationSeconds. A nil clock uses the wall clock.
func NewModel(text string, durationSeconds int, clock typing.Clock) *Model {
	if clock == nil {
		clock = typing.SystemClock{}
	}
	m := &Model{text: text, duration: durationSeconds, clock: clock}
	m.newRound()
	return m
}

func (m *Model) newRound() {
	if m.sess != nil {
		m.sess.Close()
	}
	m.round++
	m.sess = typing.NewSession(typing.RecorderFunc(discard), typing.WithClock(m.clock))
	m.sess.Bind(typing.Content{ID: m.round, Text: m.text}, m.duration)
}

func discard(context.Context, typing.Result) (typing.Outcome, error) {
	return typing.Outcome{Success: true, Message: "Practice results are not saved."}, nil
}

// Close stops the countdown of the current round.
func (m *Model) Close() {
	m.sess.Close()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return refresh()
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		return m, refresh()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			if m.sess.View().Phase == typing.PhaseFinished {
				m.newRound()
			}
			return m, nil
		case tea.KeyBackspace, tea.KeyDelete:
			m.handleBackspace()
			return m, nil
		case tea.KeySpace:
			m.handleRunes([]rune{' '})
			return m, nil
		case tea.KeyRunes:
			m.handleRunes(msg.Runes)
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) handleBackspace() {
	v := m.sess.View()
	in := []rune(v.Input)
	if v.Phase != typing.PhaseRunning || len(in) == 0 {
		return
	}
	m.sess.Input(string(in[:len(in)-1]))
}

// handleRunes offers each rune as its own keystroke. The first keystroke
// starts the countdown.
func (m *Model) handleRunes(runes []rune) {
	if m.sess.View().Phase == typing.PhaseNotStarted {
		m.sess.Start()
	}
	for _, r := range runes {
		v := m.sess.View()
		if v.Phase != typing.PhaseRunning {
			return
		}
		m.sess.Input(v.Input + string(r))
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	v := m.sess.View()

	var b strings.Builder
	b.WriteString(renderTimer(v))
	b.WriteString("\n\n")
	b.WriteString(m.renderText(v))
	b.WriteString("\n\n")
	b.WriteString(renderStatus(v))

	content := b.String()
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func renderTimer(v typing.View) string {
	secs := v.RemainingSeconds
	if v.Phase == typing.PhaseNotStarted {
		secs = v.Duration
	}
	s := fmt.Sprintf("%d:%02d", secs/60, secs%60)
	if v.Phase == typing.PhaseRunning && secs <= 10 {
		return lowStyle.Render(s)
	}
	return timerStyle.Render(s)
}

func (m *Model) renderText(v typing.View) string {
	target := []rune(v.Target)
	input := []rune(v.Input)

	var b strings.Builder
	for i, r := range target {
		ch := string(r)
		switch {
		case i == v.ErrorIndex:
			b.WriteString(errorStyle.Render(ch))
		case i < len(input) && input[i] == r:
			b.WriteString(correctStyle.Render(ch))
		case i < len(input):
			b.WriteString(errorStyle.Render(ch))
		case i == len(input) && v.Phase != typing.PhaseFinished:
			b.WriteString(cursorStyle.Render(ch))
		default:
			b.WriteString(pendingStyle.Render(ch))
		}
	}

	width := m.width * 7 / 10
	if width < 1 {
		return b.String()
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func renderStatus(v typing.View) string {
	switch v.Phase {
	case typing.PhaseNotStarted:
		return footerStyle.Render("start typing to begin · esc quit")
	case typing.PhaseRunning:
		line := footerStyle.Render(fmt.Sprintf("%d / %d characters · %d mistakes · esc quit",
			len([]rune(v.Input)), len([]rune(v.Target)), v.Mistakes))
		if v.InError() {
			return noticeStyle.Render("wrong character, backspace to the highlighted position") + "\n" + line
		}
		return line
	}

	var b strings.Builder
	if r := v.Result; r != nil {
		b.WriteString(resultStyle.Render(fmt.Sprintf("%d WPM · %d%% accuracy", r.WPM, r.Accuracy)))
		b.WriteString("\n")
		b.WriteString(footerStyle.Render(fmt.Sprintf("%d correct characters in %ds, %d mistakes (%s)",
			r.CorrectChars, r.Seconds, r.Mistakes, r.Reason)))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("enter again · esc quit"))
	return b.String()
}
