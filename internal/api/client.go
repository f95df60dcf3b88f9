// Package api is the typed client for the platform's viva endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mentorlab/vivavoce/internal/model"
)

// APIError is a non-2xx response from the backend. Message carries the
// server-provided error text when one was decodable.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error (HTTP %d)", e.StatusCode)
}

// Client talks to the project-management backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a backend client. token is sent as a bearer credential on
// every request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// StartSession creates (or fetches) the viva session for a project.
func (c *Client) StartSession(ctx context.Context, projectID int64) (*model.VivaSession, error) {
	var sess model.VivaSession
	err := c.post(ctx, "/ai/viva/", model.StartSessionRequest{ProjectID: projectID}, &sess)
	if err != nil {
		return nil, fmt.Errorf("start viva session: %w", err)
	}
	return &sess, nil
}

// EvaluateAnswer submits one answer and returns the scored question.
func (c *Client) EvaluateAnswer(ctx context.Context, questionID int64, answer string) (*model.VivaQuestion, error) {
	var q model.VivaQuestion
	err := c.post(ctx, "/ai/viva/evaluate/", model.EvaluateRequest{QuestionID: questionID, Answer: answer}, &q)
	if err != nil {
		return nil, fmt.Errorf("evaluate answer: %w", err)
	}
	return &q, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeErrorMessage pulls the server's message out of an error body. The
// backend uses both {"error": ...} and {"detail": ...} shapes.
func decodeErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		slog.Debug("unparsable error body", "body", string(data))
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Detail
}
