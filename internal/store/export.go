package store

import (
	"fmt"

	"github.com/mentorlab/vivavoce/internal/model"
)

// ExportAllSessions builds export-ready results from every recorded attempt.
func (s *Store) ExportAllSessions() ([]model.SessionResult, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var results []model.SessionResult
	for _, sess := range sessions {
		answers, err := s.GetAnswers(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("get answers for session %d: %w", sess.SessionID, err)
		}

		var out []model.AnswerResult
		var total float64
		for _, a := range answers {
			out = append(out, model.AnswerResult{
				QuestionID:   a.QuestionID,
				QuestionText: a.QuestionText,
				Answer:       a.Answer,
				Score:        a.Score,
				Feedback:     a.Feedback,
				AnsweredAt:   a.AnsweredAt,
			})
			total += a.Score
		}

		var mean float64
		if len(answers) > 0 {
			mean = total / float64(len(answers))
		}

		results = append(results, model.SessionResult{
			SessionID:  sess.SessionID,
			ProjectID:  sess.ProjectID,
			StartedAt:  sess.StartedAt,
			FinishedAt: sess.FinishedAt,
			Answers:    out,
			MeanScore:  mean,
		})
	}

	return results, nil
}
