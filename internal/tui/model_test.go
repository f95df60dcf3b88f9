package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mentorlab/vivavoce/internal/i18n"
	"github.com/mentorlab/vivavoce/internal/model"
	"github.com/mentorlab/vivavoce/internal/session"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	m.Run()
}

type fakeBackend struct {
	mu         sync.Mutex
	startCalls int
	evalCalls  int
	startErr   error
	questions  []model.VivaQuestion
}

func (b *fakeBackend) StartSession(_ context.Context, _ int64) (*model.VivaSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startCalls++
	if b.startErr != nil {
		return nil, b.startErr
	}
	qs := make([]model.VivaQuestion, len(b.questions))
	copy(qs, b.questions)
	return &model.VivaSession{ID: 7, Questions: qs}, nil
}

func (b *fakeBackend) EvaluateAnswer(_ context.Context, questionID int64, answer string) (*model.VivaQuestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evalCalls++
	score := 8.0
	feedback := "Good answer"
	return &model.VivaQuestion{
		ID:            questionID,
		QuestionText:  fmt.Sprintf("question %d", questionID),
		StudentAnswer: &answer,
		AIScore:       &score,
		AIFeedback:    &feedback,
	}, nil
}

func (b *fakeBackend) calls() (starts, evals int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startCalls, b.evalCalls
}

type fakeNarrator struct {
	spoken    []string
	scheduled []string
	closed    bool
}

func (n *fakeNarrator) Speak(text string)         { n.spoken = append(n.spoken, text) }
func (n *fakeNarrator) ScheduleSpeak(text string) { n.scheduled = append(n.scheduled, text) }
func (n *fakeNarrator) Close()                    { n.closed = true }

func twoQuestions() []model.VivaQuestion {
	return []model.VivaQuestion{
		{ID: 101, QuestionText: "Explain your schema design."},
		{ID: 102, QuestionText: "How does your API handle auth?"},
	}
}

// bootedModel builds a model and runs the bootstrap command to completion.
func bootedModel(t *testing.T, backend *fakeBackend) (Model, *fakeNarrator) {
	t.Helper()
	nar := &fakeNarrator{}
	m := New(session.New(backend, nil), nar, 3)
	updated, _ := m.Update(m.bootstrapCmd()())
	return updated.(Model), nar
}

// pressKey feeds one key event and returns the new model and command.
func pressKey(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// submitAnswer drives the full submit round trip: key press plus resolving
// the evaluation command synchronously.
func submitAnswer(t *testing.T, m Model, answer string) Model {
	t.Helper()
	m.input.SetValue(answer)
	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if !m.evaluating {
		t.Fatal("expected evaluation to be in flight after submit")
	}
	updated, _ := m.Update(m.submitCmd()())
	return updated.(Model)
}

func TestBootstrapShowsFirstQuestionAndNarratesIt(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, nar := bootedModel(t, backend)

	if m.state != stateExam {
		t.Fatalf("state = %d, want exam", m.state)
	}
	if got := m.ctrl.Index(); got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}
	if !strings.Contains(m.View(), "Explain your schema design.") {
		t.Error("view does not show the first question")
	}
	if len(nar.scheduled) != 1 || nar.scheduled[0] != "Explain your schema design." {
		t.Errorf("scheduled narration = %q, want the first question", nar.scheduled)
	}
}

func TestBootstrapFailureShowsErrorAndKeyQuits(t *testing.T) {
	backend := &fakeBackend{startErr: fmt.Errorf("upstream AI provider call failed")}
	m, nar := bootedModel(t, backend)

	if m.state != stateFailed {
		t.Fatalf("state = %d, want failed", m.state)
	}
	if !strings.Contains(m.View(), "upstream AI provider call failed") {
		t.Error("view does not show the failure reason")
	}

	m, cmd := pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd produced %T, want tea.QuitMsg", cmd())
	}
	if !nar.closed {
		t.Error("narrator not closed on exit")
	}
}

func TestEmptySessionIsAFailure(t *testing.T) {
	backend := &fakeBackend{}
	m, _ := bootedModel(t, backend)
	if m.state != stateFailed {
		t.Fatalf("state = %d, want failed for a session without questions", m.state)
	}
}

func TestSubmitShowsVerdictAndSpeaksFeedback(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, nar := bootedModel(t, backend)

	m = submitAnswer(t, m, "I normalised to third normal form.")

	q, _ := m.ctrl.Current()
	if !q.Evaluated() {
		t.Fatal("current question not evaluated after verdict")
	}
	view := m.View()
	if !strings.Contains(view, "Score: 8/10") {
		t.Errorf("view does not show the score:\n%s", view)
	}
	if !strings.Contains(view, "Good answer") {
		t.Error("view does not show the feedback")
	}
	if len(nar.spoken) != 1 || nar.spoken[0] != "Good answer" {
		t.Errorf("spoken = %q, want the feedback", nar.spoken)
	}
}

func TestSubmitEmptyAnswerMakesNoCall(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, _ := bootedModel(t, backend)

	m.input.SetValue("   \n  ")
	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	if m.evaluating {
		t.Error("blank answer must not start an evaluation")
	}
	if _, evals := backend.calls(); evals != 0 {
		t.Errorf("evaluate calls = %d, want 0", evals)
	}
	if m.notice == "" {
		t.Error("expected a notice for the rejected submit")
	}
}

func TestNavigationAfterVerdict(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, nar := bootedModel(t, backend)
	m = submitAnswer(t, m, "first answer")

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if got := m.ctrl.Index(); got != 1 {
		t.Fatalf("cursor = %d, want 1", got)
	}
	// The unanswered second question is narrated on arrival.
	if got := nar.scheduled[len(nar.scheduled)-1]; got != "How does your API handle auth?" {
		t.Errorf("scheduled narration = %q, want the second question", got)
	}
	if m.input.Value() != "" {
		t.Errorf("draft = %q, want empty for an unanswered question", m.input.Value())
	}

	// Going back restores the saved answer and does not re-narrate.
	before := len(nar.scheduled)
	m = submitAnswer(t, m, "second answer")
	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.input.Value() != "first answer" {
		t.Errorf("draft = %q, want the saved first answer", m.input.Value())
	}
	if len(nar.scheduled) != before {
		t.Error("answered question must not be auto-narrated")
	}
}

func TestFinishOnLastQuestionQuitsWithoutNetworkCall(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, nar := bootedModel(t, backend)

	m = submitAnswer(t, m, "first answer")
	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m = submitAnswer(t, m, "second answer")

	if !m.ctrl.IsLast() {
		t.Fatal("cursor should sit on the last question")
	}
	starts, evals := backend.calls()

	m, cmd := pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != stateDone {
		t.Fatalf("state = %d, want done", m.state)
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd produced %T, want tea.QuitMsg", cmd())
	}
	if s, e := backend.calls(); s != starts || e != evals {
		t.Error("finish must not issue any network call")
	}
	if !nar.closed {
		t.Error("narrator not closed on finish")
	}
	if !strings.Contains(m.View(), "2 questions answered.") {
		t.Errorf("final view missing the summary:\n%s", m.View())
	}
}

func TestEnterBeforeLastQuestionAdvances(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, _ := bootedModel(t, backend)
	m = submitAnswer(t, m, "first answer")

	m, cmd := pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter on a non-final question must not quit")
	}
	if got := m.ctrl.Index(); got != 1 {
		t.Errorf("cursor = %d, want 1", got)
	}
}

func TestReplaySpeaksCurrentQuestion(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, nar := bootedModel(t, backend)

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if len(nar.spoken) != 1 || nar.spoken[0] != "Explain your schema design." {
		t.Errorf("spoken = %q, want the question text", nar.spoken)
	}

	m = submitAnswer(t, m, "my answer")
	_, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if got := nar.spoken[len(nar.spoken)-1]; got != "Good answer" {
		t.Errorf("replay after verdict spoke %q, want the feedback", got)
	}
}

func TestNarrationFailureSetsNotice(t *testing.T) {
	backend := &fakeBackend{questions: twoQuestions()}
	m, _ := bootedModel(t, backend)

	updated, _ := m.Update(NarrationFailedMsg{Err: fmt.Errorf("voice service down")})
	m = updated.(Model)
	if !strings.Contains(m.View(), i18n.T("VoiceUnavailable")) {
		t.Error("view does not surface the voice failure")
	}
}
