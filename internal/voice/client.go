// Package voice is the client for the AI microservice's text-to-speech
// endpoint.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultVoice matches the examiner voice the platform uses.
const DefaultVoice = "hannah"

// Client calls POST /generate-voice on the voice service. The service takes
// no auth header.
type Client struct {
	baseURL string
	voice   string
	http    *http.Client
}

// New creates a voice client with a fixed voice parameter.
func New(baseURL, voice string) *Client {
	if voice == "" {
		voice = DefaultVoice
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		voice:   voice,
		// Long texts take the service a while to synthesize.
		http: &http.Client{Timeout: 90 * time.Second},
	}
}

// Synthesize returns WAV audio for the given text. The service reports
// failures as a JSON body, sometimes with status 200, so any JSON response
// is treated as an error.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}{Text: text, Voice: c.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-voice", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call voice service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice service: HTTP %d: %s", resp.StatusCode, errorBody(resp.Body))
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("voice service: %s", errorBody(resp.Body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio stream: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("voice service returned empty audio")
	}
	return audio, nil
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func errorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil {
		return "unreadable error body"
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
