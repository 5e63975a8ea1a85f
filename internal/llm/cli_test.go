package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewCLIClient_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		command     string
		args        []string
		timeout     time.Duration
		wantCommand string
		wantTimeout time.Duration
	}{
		{
			name:        "empty command uses claude",
			wantCommand: "claude",
			wantTimeout: DefaultTimeout,
		},
		{
			name:        "custom command kept",
			command:     "ollama",
			args:        []string{"run", "llama3"},
			timeout:     30 * time.Second,
			wantCommand: "ollama",
			wantTimeout: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCLIClient(tt.command, tt.args, tt.timeout)
			if c.command != tt.wantCommand {
				t.Errorf("command = %q, want %q", c.command, tt.wantCommand)
			}
			if c.timeout != tt.wantTimeout {
				t.Errorf("timeout = %v, want %v", c.timeout, tt.wantTimeout)
			}
		})
	}
}

func TestCLIClient_Complete(t *testing.T) {
	c := NewCLIClient("echo", nil, 5*time.Second)

	got, err := c.Complete(context.Background(), "hello pipeline")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello pipeline" {
		t.Errorf("got %q", got)
	}
}

func TestCLIClient_SystemPromptPrepended(t *testing.T) {
	c := NewCLIClient("echo", nil, 5*time.Second)

	got, err := c.CompleteWithSystem(context.Background(), "act as a scorer", "score this")
	if err != nil {
		t.Fatalf("CompleteWithSystem: %v", err)
	}
	if !strings.Contains(got, "[System Instructions]") || !strings.Contains(got, "act as a scorer") {
		t.Errorf("system prompt missing: %q", got)
	}
	if !strings.Contains(got, "score this") {
		t.Errorf("user prompt missing: %q", got)
	}
}

func TestCLIClient_CommandNotFound(t *testing.T) {
	c := NewCLIClient("definitely-not-a-real-binary-4f9a", nil, 2*time.Second)

	_, err := c.Complete(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error")
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %T", err)
	}
	if callErr.Provider != "cli" {
		t.Errorf("provider = %q", callErr.Provider)
	}
}

func TestCLIClient_StderrSurfacesInError(t *testing.T) {
	c := NewCLIClient("sh", []string{"-c", "echo boom >&2; exit 1"}, 5*time.Second)

	_, err := c.Complete(context.Background(), "ignored")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("stderr lost: %v", err)
	}
}
