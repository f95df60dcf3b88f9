package model

import "time"

// Profile identifies whose transcripts a local database holds.
type Profile struct {
	Student string `json:"student"`
	APIBase string `json:"api_base"`
}

// VivaExport is the top-level JSON structure for transcript export.
type VivaExport struct {
	Student    string          `json:"student"`
	APIBase    string          `json:"api_base"`
	ExportedAt time.Time       `json:"exported_at"`
	Sessions   []SessionResult `json:"sessions"`
}

// SessionResult holds one recorded viva session for export.
type SessionResult struct {
	SessionID  int64          `json:"session_id"`
	ProjectID  int64          `json:"project_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Answers    []AnswerResult `json:"answers"`
	MeanScore  float64        `json:"mean_score"`
}

// AnswerResult holds per-question data for export.
type AnswerResult struct {
	QuestionID   int64     `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Answer       string    `json:"answer"`
	Score        float64   `json:"score"`
	Feedback     string    `json:"feedback"`
	AnsweredAt   time.Time `json:"answered_at"`
}
