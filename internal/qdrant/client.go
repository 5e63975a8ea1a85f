// Package qdrant is a typed REST facade over a Qdrant vector store.
//
// The pipeline keeps three collections in one 384-dimensional cosine space:
// session chunks, reflections and rules. Point payloads cross this package's
// boundary as typed records; inside requests they are plain JSON maps.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hindsight/internal/logging"
)

// Collection names.
const (
	CollectionSessions    = "sessions"
	CollectionReflections = "reflections"
	CollectionRules       = "rules"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a Qdrant server over its REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Config holds connection settings.
type Config struct {
	URL         string
	APIKey      string
	TimeoutSecs int
}

// NewClient creates a Qdrant REST client.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 30
	}

	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		},
	}
}

// envelope is Qdrant's standard response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

// errorStatus is the status shape Qdrant uses on failures.
type errorStatus struct {
	Error string `json:"error"`
}

// do sends one request and decodes the result portion of the envelope into
// out (which may be nil when the caller only cares about success).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, message: qdrantErrorMessage(data)}
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// qdrantErrorMessage extracts the server-side error string from a failure
// body, falling back to the raw body.
func qdrantErrorMessage(data []byte) string {
	var env struct {
		Status errorStatus `json:"status"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Status.Error != "" {
		return env.Status.Error
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}

// statusError carries the HTTP layer detail inside a StoreError.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.message)
}

// HealthCheck verifies the server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.do(ctx, "GET", "/collections", nil, nil); err != nil {
		logging.StoreWarn("Health check failed: %v", err)
		return &StoreError{Op: "health_check", Err: err}
	}
	return nil
}
