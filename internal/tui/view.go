package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mentorlab/vivavoce/internal/i18n"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	questionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	scoreGoodStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	scoreLowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	feedbackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	doneStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const progressBarWidth = 30

func (m Model) View() string {
	switch m.state {
	case stateLoading:
		return fmt.Sprintf("\n  %s %s\n", m.spin.View(), i18n.T("PreparingSession"))
	case stateFailed:
		return fmt.Sprintf("\n  %s\n  %s\n", noticeStyle.Render(i18n.T("SessionFailed")), m.fatalErr)
	case stateDone:
		return fmt.Sprintf("\n  %s\n", doneStyle.Render(m.completionSummary()))
	}
	return m.examView()
}

func (m Model) examView() string {
	var b strings.Builder

	b.WriteString("\n  " + titleStyle.Render(i18n.T("AppTitle")))
	b.WriteString("  " + subtitleStyle.Render(i18n.Td("ProjectN", map[string]any{"ID": m.projectID})))
	b.WriteString("\n\n")

	b.WriteString("  " + m.progressLine() + "\n\n")

	q, ok := m.ctrl.Current()
	if !ok {
		return b.String()
	}

	qs := questionStyle
	if m.width > 8 {
		qs = qs.Width(min(m.width-6, 96))
	}
	b.WriteString("  " + subtitleStyle.Render(i18n.T("ExaminerAsks")) + "\n")
	b.WriteString(qs.Render(q.QuestionText) + "\n\n")

	if q.Evaluated() {
		b.WriteString(m.verdictView())
	} else {
		b.WriteString(m.input.View() + "\n")
		if m.evaluating {
			b.WriteString(fmt.Sprintf("\n  %s %s\n", m.spin.View(), i18n.T("Evaluating")))
		}
	}

	if m.notice != "" {
		b.WriteString("\n  " + noticeStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys) + "\n")
	return b.String()
}

func (m Model) progressLine() string {
	idx, total := m.ctrl.Index(), m.ctrl.Len()
	pct := 0
	if total > 0 {
		pct = (idx + 1) * 100 / total
	}
	label := i18n.Td("QuestionProgress", map[string]any{"Current": idx + 1, "Total": total})
	return fmt.Sprintf("%s %s %s", label, m.progressBar(pct),
		subtitleStyle.Render(i18n.Td("PercentComplete", map[string]any{"Percent": pct})))
}

func (m Model) progressBar(pct int) string {
	filled := progressBarWidth * pct / 100
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", progressBarWidth-filled))
}

func (m Model) verdictView() string {
	q, _ := m.ctrl.Current()
	var b strings.Builder

	score := 0.0
	if q.AIScore != nil {
		score = *q.AIScore
	}
	style := scoreLowStyle
	if score >= 7 {
		style = scoreGoodStyle
	}
	b.WriteString("  " + style.Render(i18n.Td("ScoreOutOfTen", map[string]any{"Score": score})) + "\n\n")

	if fb := q.Feedback(); fb != "" {
		fs := feedbackStyle
		if m.width > 8 {
			fs = fs.Width(min(m.width-8, 92))
		}
		b.WriteString("  " + subtitleStyle.Render(i18n.T("ExaminerFeedback")) + "\n")
		b.WriteString(fs.Render(fb) + "\n")
	}
	return b.String()
}
