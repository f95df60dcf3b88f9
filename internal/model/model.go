package model

import (
	"strings"
	"time"
)

// VivaQuestion is one examination question inside a viva session, as served
// by the backend. StudentAnswer, AIScore and AIFeedback are set together by
// a single evaluation and stay nil until then.
type VivaQuestion struct {
	ID            int64    `json:"id"`
	QuestionText  string   `json:"question_text"`
	StudentAnswer *string  `json:"student_answer"`
	AIScore       *float64 `json:"ai_score"`
	AIFeedback    *string  `json:"ai_feedback"`
}

// Evaluated reports whether the question has been scored.
func (q VivaQuestion) Evaluated() bool {
	return q.AIScore != nil
}

// SavedAnswer returns the stored answer, or empty string when unanswered.
func (q VivaQuestion) SavedAnswer() string {
	if q.StudentAnswer == nil {
		return ""
	}
	return *q.StudentAnswer
}

// Feedback returns the examiner feedback, or empty string when unscored.
func (q VivaQuestion) Feedback() string {
	if q.AIFeedback == nil {
		return ""
	}
	return *q.AIFeedback
}

// VivaSession is a question set issued by the backend for one project
// attempt. Question membership and order are fixed at creation; individual
// questions mutate in place as they are answered.
type VivaSession struct {
	ID        int64          `json:"id"`
	Questions []VivaQuestion `json:"questions"`
}

// QuestionByID returns a pointer into Questions for the given id, or nil.
func (s *VivaSession) QuestionByID(id int64) *VivaQuestion {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i]
		}
	}
	return nil
}

// AnsweredCount returns how many questions have been evaluated.
func (s *VivaSession) AnsweredCount() int {
	n := 0
	for _, q := range s.Questions {
		if q.Evaluated() {
			n++
		}
	}
	return n
}

// StartSessionRequest is the body of the session bootstrap call.
type StartSessionRequest struct {
	ProjectID int64 `json:"project_id"`
}

// EvaluateRequest is the body of the answer evaluation call.
type EvaluateRequest struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

// SynthesizeRequest is the body of the voice synthesis call.
type SynthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// TranscriptSession is a locally recorded viva attempt.
type TranscriptSession struct {
	ID         int64      `json:"-"`
	SessionID  int64      `json:"session_id"`
	ProjectID  int64      `json:"project_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TranscriptAnswer is one evaluated question recorded locally.
type TranscriptAnswer struct {
	ID           int64     `json:"-"`
	SessionRowID int64     `json:"-"`
	QuestionID   int64     `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Answer       string    `json:"answer"`
	Score        float64   `json:"score"`
	Feedback     string    `json:"feedback"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// CleanAnswer normalizes a free-text answer for submission. An empty result
// means the answer must not be sent.
func CleanAnswer(s string) string {
	return strings.TrimSpace(s)
}
