package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"hindsight/internal/logging"
)

// CLIClient implements Client by invoking a local assistant CLI as a
// subprocess, e.g. `claude -p <prompt>`. Works without any API key when the
// host machine already carries an authenticated assistant.
type CLIClient struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCLIClient creates a subprocess-backed client. The prompt is appended
// as the final argument after args.
func NewCLIClient(command string, args []string, timeout time.Duration) *CLIClient {
	if command == "" {
		command = "claude"
		args = []string{"-p"}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CLIClient{command: command, args: args, timeout: timeout}
}

// Complete sends a prompt and returns the completion.
func (c *CLIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem prepends the system prompt; single-shot CLIs take one
// prompt argument.
func (c *CLIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prompt := userPrompt
	if strings.TrimSpace(systemPrompt) != "" {
		prompt = fmt.Sprintf("[System Instructions]\n%s\n\n[User Request]\n%s", systemPrompt, userPrompt)
	}
	return c.run(ctx, prompt)
}

func (c *CLIClient) run(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := append(append([]string{}, c.args...), prompt)
	cmd := exec.CommandContext(ctx, c.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.LLMDebug("[CLI] invoking %s (prompt_len=%d)", c.command, len(prompt))
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &CallError{Provider: "cli", Err: fmt.Errorf("%s timed out after %v", c.command, c.timeout)}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", &CallError{Provider: "cli", Err: ctx.Err()}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &CallError{Provider: "cli", Err: fmt.Errorf("%s failed: %s", c.command, msg)}
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", &CallError{Provider: "cli", Err: fmt.Errorf("%s produced no output", c.command)}
	}
	return text, nil
}
