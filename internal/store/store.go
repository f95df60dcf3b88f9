// Package store keeps a local transcript of viva attempts so results can
// be exported without the backend.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mentorlab/vivavoce/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS viva_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL UNIQUE,
		project_id INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS viva_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_row_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		question_text TEXT NOT NULL,
		answer TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		answered_at DATETIME NOT NULL,
		UNIQUE(session_row_id, question_id),
		FOREIGN KEY (session_row_id) REFERENCES viva_sessions(id)
	);

	CREATE TABLE IF NOT EXISTS profile (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SessionStarted records the start of a viva attempt. Re-recording the same
// backend session id is a no-op, so a resumed session keeps its original
// start time.
func (s *Store) SessionStarted(sessionID, projectID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO viva_sessions (session_id, project_id, started_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sessionID, projectID, time.Now(),
	)
	return err
}

// AnswerEvaluated records one scored question for a session. The question
// id is unique per session; recording the same verdict twice keeps the
// first row.
func (s *Store) AnswerEvaluated(sessionID int64, q model.VivaQuestion) error {
	rowID, err := s.sessionRowID(sessionID)
	if err != nil {
		return err
	}
	var score float64
	if q.AIScore != nil {
		score = *q.AIScore
	}
	_, err = s.db.Exec(
		`INSERT INTO viva_answers (session_row_id, question_id, question_text, answer, score, feedback, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_row_id, question_id) DO NOTHING`,
		rowID, q.ID, q.QuestionText, q.SavedAnswer(), score, q.Feedback(), time.Now(),
	)
	return err
}

// SessionFinished stamps the end of an attempt. Only the first finish
// sticks.
func (s *Store) SessionFinished(sessionID int64) error {
	_, err := s.db.Exec(
		`UPDATE viva_sessions SET finished_at = ? WHERE session_id = ? AND finished_at IS NULL`,
		time.Now(), sessionID,
	)
	return err
}

func (s *Store) sessionRowID(sessionID int64) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM viva_sessions WHERE session_id = ?`, sessionID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("session %d not recorded", sessionID)
	}
	return id, err
}

// ListSessions returns all recorded attempts, newest first.
func (s *Store) ListSessions() ([]model.TranscriptSession, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, project_id, started_at, finished_at FROM viva_sessions ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.TranscriptSession
	for rows.Next() {
		var ts model.TranscriptSession
		if err := rows.Scan(&ts.ID, &ts.SessionID, &ts.ProjectID, &ts.StartedAt, &ts.FinishedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, ts)
	}
	return sessions, rows.Err()
}

// GetAnswers returns the answers recorded for a session row, in answer
// order.
func (s *Store) GetAnswers(sessionRowID int64) ([]model.TranscriptAnswer, error) {
	rows, err := s.db.Query(
		`SELECT id, session_row_id, question_id, question_text, answer, score, feedback, answered_at
		 FROM viva_answers WHERE session_row_id = ? ORDER BY id`, sessionRowID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var answers []model.TranscriptAnswer
	for rows.Next() {
		var a model.TranscriptAnswer
		if err := rows.Scan(&a.ID, &a.SessionRowID, &a.QuestionID, &a.QuestionText, &a.Answer, &a.Score, &a.Feedback, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SessionCount returns the number of recorded attempts.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM viva_sessions`).Scan(&count)
	return count, err
}
