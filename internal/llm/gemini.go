package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"hindsight/internal/logging"
)

// GeminiClient implements Client over the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &CallError{Provider: "gemini", Err: fmt.Errorf("API key not configured")}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &CallError{Provider: "gemini", Err: fmt.Errorf("create client: %w", err)}
	}

	return &GeminiClient{client: client, model: model, timeout: timeout}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logging.LLMDebug("[Gemini] model=%s system_len=%d user_len=%d", c.model, len(systemPrompt), len(userPrompt))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", &CallError{Provider: "gemini", Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &CallError{Provider: "gemini", Err: fmt.Errorf("empty response")}
	}
	return text, nil
}
