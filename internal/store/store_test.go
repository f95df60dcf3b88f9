package store

import (
	"testing"

	"github.com/mentorlab/vivavoce/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recordTestAnswer(t *testing.T, s *Store, sessionID, questionID int64, answer string, score float64) {
	t.Helper()
	feedback := "feedback for " + answer
	err := s.AnswerEvaluated(sessionID, model.VivaQuestion{
		ID:            questionID,
		QuestionText:  "question " + answer,
		StudentAnswer: &answer,
		AIScore:       &score,
		AIFeedback:    &feedback,
	})
	if err != nil {
		t.Fatalf("recordTestAnswer: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	count, err := s.SessionCount()
	if err != nil {
		t.Fatalf("SessionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 sessions, got %d", count)
	}

	if err := s.SessionStarted(7, 42); err != nil {
		t.Fatalf("SessionStarted: %v", err)
	}
	// Recording the same backend session again is a no-op.
	if err := s.SessionStarted(7, 42); err != nil {
		t.Fatalf("SessionStarted repeat: %v", err)
	}

	sessions, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SessionID != 7 || sessions[0].ProjectID != 42 {
		t.Errorf("unexpected session: %+v", sessions[0])
	}
	if sessions[0].FinishedAt != nil {
		t.Error("expected nil finished_at")
	}

	if err := s.SessionFinished(7); err != nil {
		t.Fatalf("SessionFinished: %v", err)
	}
	sessions, _ = s.ListSessions()
	if sessions[0].FinishedAt == nil {
		t.Fatal("expected finished_at to be set")
	}
	first := *sessions[0].FinishedAt

	// Only the first finish sticks.
	if err := s.SessionFinished(7); err != nil {
		t.Fatalf("SessionFinished repeat: %v", err)
	}
	sessions, _ = s.ListSessions()
	if !sessions[0].FinishedAt.Equal(first) {
		t.Error("finished_at changed on second finish")
	}
}

func TestAnswerRecording(t *testing.T) {
	s := newTestStore(t)
	if err := s.SessionStarted(7, 42); err != nil {
		t.Fatalf("SessionStarted: %v", err)
	}

	recordTestAnswer(t, s, 7, 101, "first", 8)
	recordTestAnswer(t, s, 7, 102, "second", 6)
	// Duplicate verdicts keep the first row.
	recordTestAnswer(t, s, 7, 101, "changed", 1)

	sessions, _ := s.ListSessions()
	answers, err := s.GetAnswers(sessions[0].ID)
	if err != nil {
		t.Fatalf("GetAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].QuestionID != 101 || answers[0].Answer != "first" {
		t.Errorf("unexpected first answer: %+v", answers[0])
	}
	if answers[0].Score != 8 {
		t.Errorf("expected score 8, got %v", answers[0].Score)
	}
	if answers[1].QuestionID != 102 {
		t.Errorf("unexpected second answer: %+v", answers[1])
	}
}

func TestAnswerForUnknownSession(t *testing.T) {
	s := newTestStore(t)
	score := 5.0
	err := s.AnswerEvaluated(99, model.VivaQuestion{ID: 1, AIScore: &score})
	if err == nil {
		t.Fatal("expected error for unrecorded session")
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []int64{1, 2, 3} {
		if err := s.SessionStarted(id, 42); err != nil {
			t.Fatalf("SessionStarted %d: %v", id, err)
		}
	}
	sessions, err := s.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != 3 || sessions[2].SessionID != 1 {
		t.Errorf("not newest first: %v, %v, %v",
			sessions[0].SessionID, sessions[1].SessionID, sessions[2].SessionID)
	}
}

func TestProfile(t *testing.T) {
	s := newTestStore(t)

	// Missing keys read as empty.
	p, err := s.GetProfile()
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Student != "" || p.APIBase != "" {
		t.Errorf("expected empty profile, got %+v", p)
	}

	if err := s.SetProfile(model.Profile{Student: "amina", APIBase: "http://127.0.0.1:8000"}); err != nil {
		t.Fatalf("SetProfile: %v", err)
	}
	p, _ = s.GetProfile()
	if p.Student != "amina" {
		t.Errorf("expected student 'amina', got %q", p.Student)
	}
	if p.APIBase != "http://127.0.0.1:8000" {
		t.Errorf("expected api base preserved, got %q", p.APIBase)
	}

	// Update existing.
	if err := s.SetProfileValue("student", "bakyt"); err != nil {
		t.Fatalf("SetProfileValue: %v", err)
	}
	v, _ := s.GetProfileValue("student")
	if v != "bakyt" {
		t.Errorf("expected 'bakyt', got %q", v)
	}
}

func TestExportAllSessions(t *testing.T) {
	s := newTestStore(t)

	if err := s.SessionStarted(7, 42); err != nil {
		t.Fatalf("SessionStarted: %v", err)
	}
	recordTestAnswer(t, s, 7, 101, "first", 8)
	recordTestAnswer(t, s, 7, 102, "second", 6)
	if err := s.SessionFinished(7); err != nil {
		t.Fatalf("SessionFinished: %v", err)
	}

	if err := s.SessionStarted(8, 43); err != nil {
		t.Fatalf("SessionStarted: %v", err)
	}

	results, err := s.ExportAllSessions()
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Newest first: session 8 has no answers.
	if results[0].SessionID != 8 {
		t.Errorf("expected session 8 first, got %d", results[0].SessionID)
	}
	if len(results[0].Answers) != 0 || results[0].MeanScore != 0 {
		t.Errorf("empty session should export empty: %+v", results[0])
	}

	r := results[1]
	if r.SessionID != 7 || r.ProjectID != 42 {
		t.Errorf("unexpected session result: %+v", r)
	}
	if len(r.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(r.Answers))
	}
	if r.MeanScore != 7 {
		t.Errorf("expected mean score 7, got %v", r.MeanScore)
	}
	if r.FinishedAt == nil {
		t.Error("expected finished_at in export")
	}
	if r.Answers[0].Feedback == "" {
		t.Error("expected feedback carried into export")
	}
}
