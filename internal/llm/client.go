// Package llm adapts the pipeline's one-shot completion calls to the
// configured provider: Gemini, an OpenAI-compatible endpoint, or a local
// CLI subprocess. Every stage talks to the same two-method interface;
// response parsing stays lenient because stage fallbacks, not errors, are
// the recovery path.
package llm

import (
	"context"
	"fmt"
	"time"

	"hindsight/internal/config"
	"hindsight/internal/logging"
)

// Client is a one-shot completion interface. Implementations apply the
// configured deadline when the context has none.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// DefaultTimeout bounds a single LLM invocation.
const DefaultTimeout = 120 * time.Second

// New builds the client for the configured provider. A nil cfg loads the
// workspace configuration.
func New(cfg *config.LLMConfig) (Client, error) {
	if cfg == nil {
		global, err := config.GlobalConfig()
		if err != nil {
			return nil, err
		}
		c := global.GetLLMConfig()
		cfg = &c
	}
	timeout := DefaultTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}

	switch cfg.Provider {
	case "gemini":
		logging.LLM("Using Gemini provider (model: %s)", cfg.Model)
		inner, err := NewGeminiClient(cfg.GeminiAPIKey, cfg.Model, timeout)
		if err != nil {
			return nil, err
		}
		return &auditClient{inner: inner, target: "gemini/" + cfg.Model}, nil
	case "openai":
		logging.LLM("Using OpenAI provider (model: %s)", cfg.Model)
		return &auditClient{
			inner:  NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, timeout),
			target: "openai/" + cfg.Model,
		}, nil
	case "cli":
		logging.LLM("Using CLI provider (command: %s)", cfg.CLICommand)
		return &auditClient{
			inner:  NewCLIClient(cfg.CLICommand, cfg.CLIArgs, timeout),
			target: "cli/" + cfg.CLICommand,
		}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// auditClient records every invocation's latency and outcome in the audit
// trail on the way through to the provider.
type auditClient struct {
	inner  Client
	target string
}

func (a *auditClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := a.inner.Complete(ctx, prompt)
	a.record(start, err)
	return out, err
}

func (a *auditClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	out, err := a.inner.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	a.record(start, err)
	return out, err
}

func (a *auditClient) record(start time.Time, err error) {
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logging.LLMWarn("Call to %s failed after %dms: %v", a.target, elapsed, err)
		logging.Audit().LLMCall(a.target, elapsed, false, err.Error())
		return
	}
	logging.Audit().LLMCall(a.target, elapsed, true, "")
}

// CallError wraps a failed LLM invocation with its provider for stage-level
// reporting. Stages fall back on it; they never abort the run.
type CallError struct {
	Provider string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("llm call failed (%s): %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
