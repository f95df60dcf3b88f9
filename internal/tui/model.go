// Package tui renders the viva session in the terminal. All session logic
// lives in the controller and the narrator; this layer routes key events,
// runs network calls inside tea commands and draws state.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mentorlab/vivavoce/internal/i18n"
	"github.com/mentorlab/vivavoce/internal/model"
	"github.com/mentorlab/vivavoce/internal/session"
)

type state int

const (
	stateLoading state = iota
	stateFailed
	stateExam
	stateDone
)

// Narrator is the slice of the narration channel the view needs.
type Narrator interface {
	Speak(text string)
	ScheduleSpeak(text string)
	Close()
}

// Async messages.

type sessionLoadedMsg struct{ err error }

type answerEvaluatedMsg struct {
	q   *model.VivaQuestion
	err error
}

// NarrationFailedMsg reports a non-fatal voice failure into the event loop.
// The narrator's notify hook sends it via Program.Send.
type NarrationFailedMsg struct{ Err error }

type keyMap struct {
	Submit key.Binding
	Prev   key.Binding
	Next   key.Binding
	Finish key.Binding
	Replay key.Binding
	Quit   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Submit: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", i18n.T("KeySubmit"))),
		Prev:   key.NewBinding(key.WithKeys("left"), key.WithHelp("←", i18n.T("KeyPrev"))),
		Next:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", i18n.T("KeyNext"))),
		Finish: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", i18n.T("KeyFinish"))),
		Replay: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", i18n.T("KeyReplay"))),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", i18n.T("KeyQuit"))),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Prev, k.Next, k.Replay, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Submit, k.Prev, k.Next}, {k.Finish, k.Replay, k.Quit}}
}

// Model is the root Bubble Tea model for one viva attempt.
type Model struct {
	ctrl      *session.Controller
	narrator  Narrator
	projectID int64

	state      state
	fatalErr   string
	notice     string
	evaluating bool

	input  textarea.Model
	spin   spinner.Model
	keys   keyMap
	help   help.Model
	width  int
	height int
}

// New builds the TUI around a controller and a narrator.
func New(ctrl *session.Controller, narrator Narrator, projectID int64) Model {
	ta := textarea.New()
	ta.Placeholder = i18n.T("AnswerPlaceholder")
	ta.SetHeight(6)
	ta.CharLimit = 0
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctrl:      ctrl,
		narrator:  narrator,
		projectID: projectID,
		state:     stateLoading,
		input:     ta,
		spin:      sp,
		keys:      defaultKeys(),
		help:      help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textarea.Blink, m.bootstrapCmd())
}

func (m Model) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		return sessionLoadedMsg{err: m.ctrl.Bootstrap(context.Background(), m.projectID)}
	}
}

func (m Model) submitCmd() tea.Cmd {
	return func() tea.Msg {
		q, err := m.ctrl.Submit(context.Background())
		return answerEvaluatedMsg{q: q, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.SetWidth(max(min(msg.Width-6, 100), 20))
		return m, nil

	case spinner.TickMsg:
		if m.state == stateLoading || m.evaluating {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil

	case sessionLoadedMsg:
		if msg.err != nil {
			m.state = stateFailed
			m.fatalErr = msg.err.Error()
			return m, nil
		}
		if m.ctrl.Len() == 0 {
			m.state = stateFailed
			m.fatalErr = i18n.T("NoQuestions")
			return m, nil
		}
		m.state = stateExam
		m.input.SetValue(m.ctrl.Draft())
		m.autoNarrate()
		return m, nil

	case answerEvaluatedMsg:
		m.evaluating = false
		if msg.err != nil {
			m.notice = i18n.T("EvaluationFailed")
			return m, nil
		}
		m.notice = ""
		if fb := msg.q.Feedback(); fb != "" {
			m.narrator.Speak(fb)
		}
		return m, nil

	case NarrationFailedMsg:
		m.notice = i18n.T("VoiceUnavailable")
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// Everything else (cursor blink and friends) goes to the textarea.
	if m.state == stateExam {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.narrator.Close()
		return m, tea.Quit
	}

	switch m.state {
	case stateFailed, stateDone:
		// Any key leaves the terminal state.
		m.narrator.Close()
		return m, tea.Quit

	case stateLoading:
		return m, nil
	}

	q, ok := m.ctrl.Current()
	if !ok {
		return m, nil
	}

	if key.Matches(msg, m.keys.Replay) {
		if q.Evaluated() {
			m.narrator.Speak(q.Feedback())
		} else {
			m.narrator.Speak(q.QuestionText)
		}
		return m, nil
	}

	if q.Evaluated() {
		return m.handleEvaluatedKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		if m.evaluating {
			return m, nil
		}
		m.ctrl.SetDraft(m.input.Value())
		if model.CleanAnswer(m.input.Value()) == "" {
			// The gate would refuse anyway; skip the round-trip.
			m.notice = i18n.T("EvaluationFailed")
			return m, nil
		}
		m.evaluating = true
		m.notice = ""
		return m, tea.Batch(m.spin.Tick, m.submitCmd())
	}

	// The answer is locked while a verdict is outstanding.
	if m.evaluating {
		return m, nil
	}

	// While unevaluated, the textarea owns the keyboard.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetDraft(m.input.Value())
	return m, cmd
}

func (m Model) handleEvaluatedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Prev):
		m.moveCursor(m.ctrl.Prev)
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if !m.ctrl.IsLast() {
			m.moveCursor(m.ctrl.Next)
		}
		return m, nil

	case key.Matches(msg, m.keys.Finish):
		if m.ctrl.IsLast() {
			m.ctrl.Finish()
			m.narrator.Close()
			m.state = stateDone
			return m, tea.Quit
		}
		m.moveCursor(m.ctrl.Next)
		return m, nil

	case msg.String() == "q":
		m.narrator.Close()
		return m, tea.Quit
	}
	return m, nil
}

// moveCursor runs a navigation step and, when it moved, syncs the draft
// input and auto-narrates unanswered questions.
func (m *Model) moveCursor(step func() bool) {
	if !step() {
		return
	}
	m.input.SetValue(m.ctrl.Draft())
	m.notice = ""
	m.autoNarrate()
}

// autoNarrate schedules narration of the current question when it has not
// been answered yet. The narrator's debounce coalesces rapid navigation.
func (m *Model) autoNarrate() {
	q, ok := m.ctrl.Current()
	if !ok || q.StudentAnswer != nil {
		return
	}
	m.narrator.ScheduleSpeak(q.QuestionText)
}

// FatalError returns the terminal error text, empty when none. The command
// layer uses it to pick the process exit code after the program ends.
func (m Model) FatalError() string {
	if m.state != stateFailed {
		return ""
	}
	return m.fatalErr
}

// completionSummary is shown once the student finishes the session.
func (m Model) completionSummary() string {
	sess := m.ctrl.Session()
	if sess == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", i18n.T("SessionComplete"), i18n.Tp("QuestionsAnswered", sess.AnsweredCount()))
}
