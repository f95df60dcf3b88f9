// Package session implements the viva session controller: bootstrap,
// question navigation, and the answer evaluation gate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mentorlab/vivavoce/internal/model"
)

var (
	// ErrNotStarted is returned when an operation needs a bootstrapped session.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned by a second bootstrap attempt.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrEmptyAnswer is returned when the trimmed draft answer is empty.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrAlreadyEvaluated is returned when re-submitting a scored question.
	ErrAlreadyEvaluated = errors.New("question already evaluated")
	// ErrEvaluationInFlight is returned while an evaluation for the same
	// question is still outstanding.
	ErrEvaluationInFlight = errors.New("evaluation already in flight")
)

// Backend is the slice of the platform API the controller needs.
type Backend interface {
	StartSession(ctx context.Context, projectID int64) (*model.VivaSession, error)
	EvaluateAnswer(ctx context.Context, questionID int64, answer string) (*model.VivaQuestion, error)
}

// Recorder receives session events for local transcript keeping. Recorder
// failures never fail the session; they are logged and dropped.
type Recorder interface {
	SessionStarted(sessionID, projectID int64) error
	AnswerEvaluated(sessionID int64, q model.VivaQuestion) error
	SessionFinished(sessionID int64) error
}

// Controller owns the question list and cursor for one viva attempt. It is
// safe for concurrent use: the UI event loop reads state while evaluation
// and bootstrap calls resolve on other goroutines.
type Controller struct {
	backend Backend
	rec     Recorder

	mu       sync.Mutex
	sess     *model.VivaSession
	idx      int
	draft    string
	started  bool
	finished bool
	inflight map[int64]bool
}

// New creates a controller. rec may be nil to disable transcript recording.
func New(backend Backend, rec Recorder) *Controller {
	return &Controller{
		backend:  backend,
		rec:      rec,
		inflight: make(map[int64]bool),
	}
}

// Bootstrap fetches the question set for a project. It runs at most once
// per controller: repeated calls return ErrAlreadyStarted even after a
// failed attempt, matching the one-shot mount semantics of the view.
func (c *Controller) Bootstrap(ctx context.Context, projectID int64) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	sess, err := c.backend.StartSession(ctx, projectID)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = sess
	c.idx = 0
	if len(sess.Questions) > 0 {
		c.draft = sess.Questions[0].SavedAnswer()
	}
	if c.rec != nil {
		if err := c.rec.SessionStarted(sess.ID, projectID); err != nil {
			slog.Warn("transcript: record session start", "error", err)
		}
	}
	return nil
}

// Session returns the bootstrapped session, or nil.
func (c *Controller) Session() *model.VivaSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Index returns the cursor position.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx
}

// Len returns the number of questions, 0 before bootstrap.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return 0
	}
	return len(c.sess.Questions)
}

// Current returns a copy of the question under the cursor.
func (c *Controller) Current() (model.VivaQuestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || len(c.sess.Questions) == 0 {
		return model.VivaQuestion{}, false
	}
	return c.sess.Questions[c.idx], true
}

// IsLast reports whether the cursor sits on the final question.
func (c *Controller) IsLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.idx >= len(c.sess.Questions)-1
}

// Next advances the cursor and preloads the next question's saved answer
// into the draft. Past the last question it is a no-op returning false.
func (c *Controller) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.idx >= len(c.sess.Questions)-1 {
		return false
	}
	c.idx++
	c.draft = c.sess.Questions[c.idx].SavedAnswer()
	return true
}

// Prev moves the cursor back, symmetric to Next.
func (c *Controller) Prev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.idx <= 0 {
		return false
	}
	c.idx--
	c.draft = c.sess.Questions[c.idx].SavedAnswer()
	return true
}

// Draft returns the current answer input text.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the answer input text.
func (c *Controller) SetDraft(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = s
}

// Submit sends the draft answer for the question under the cursor and
// applies the verdict. The gate rejects empty answers without a network
// call, rejects already-scored questions, and allows one outstanding
// evaluation per question. The verdict is applied keyed by question id, so
// navigating while the call is in flight cannot misapply it. On failure
// the question and draft are left untouched for a retry.
func (c *Controller) Submit(ctx context.Context) (*model.VivaQuestion, error) {
	c.mu.Lock()
	if c.sess == nil || len(c.sess.Questions) == 0 {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	q := c.sess.Questions[c.idx]
	answer := model.CleanAnswer(c.draft)
	switch {
	case answer == "":
		c.mu.Unlock()
		return nil, ErrEmptyAnswer
	case q.Evaluated():
		c.mu.Unlock()
		return nil, ErrAlreadyEvaluated
	case c.inflight[q.ID]:
		c.mu.Unlock()
		return nil, ErrEvaluationInFlight
	}
	c.inflight[q.ID] = true
	c.mu.Unlock()

	updated, err := c.backend.EvaluateAnswer(ctx, q.ID, answer)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, q.ID)
	if err != nil {
		return nil, err
	}

	if p := c.sess.QuestionByID(updated.ID); p != nil {
		*p = *updated
	} else {
		slog.Warn("verdict for unknown question", "question_id", updated.ID)
	}
	if c.rec != nil {
		if err := c.rec.AnswerEvaluated(c.sess.ID, *updated); err != nil {
			slog.Warn("transcript: record answer", "error", err)
		}
	}
	return updated, nil
}

// Finish closes the attempt. The server already holds every verdict, so no
// network call is made; only the local transcript is marked finished.
func (c *Controller) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || c.finished {
		return
	}
	c.finished = true
	if c.rec != nil {
		if err := c.rec.SessionFinished(c.sess.ID); err != nil {
			slog.Warn("transcript: record finish", "error", err)
		}
	}
}
