package pipeline

import (
	"regexp"

	"hindsight/internal/llm"
	"hindsight/internal/session"
)

// =============================================================================
// FAILURE SIGNALS
// =============================================================================

// Signal kinds. "error-message" is reserved; retry-loop currently covers it.
const (
	SignalRetryLoop    = "retry-loop"
	SignalBacktracking = "backtracking"
	SignalGitRevert    = "git-revert"
)

// Signal is one detected failure pattern with a short evidence excerpt for
// the reflection prompt.
type Signal struct {
	Kind     string
	Evidence string
}

const (
	retryLoopRun      = 3 // consecutive error-bearing assistant messages
	backtrackMinEdits = 3 // same path edited this often...
	backtrackWindow   = 6 // ...within this many edit operations
)

var (
	errorVocab = regexp.MustCompile(`(?i)\b(?:error|failed|exception)\b`)
	editedPath = regexp.MustCompile(`(?i)\b(?:edit|write|multiedit)\b[^\n]{0,160}?([\w~./\\-]+\.[A-Za-z0-9]{1,8})\b`)
	revertCmd  = regexp.MustCompile(`git\s+reset\b|git\s+revert\b|git\s+checkout\s+--`)
)

// DetectSignals scans a transcript for failure patterns. At most one signal
// per kind, in a fixed order, so reflection ordinals are stable.
func DetectSignals(messages []session.Message) []Signal {
	var signals []Signal
	if s := detectRetryLoop(messages); s != nil {
		signals = append(signals, *s)
	}
	if s := detectBacktracking(messages); s != nil {
		signals = append(signals, *s)
	}
	if s := detectGitRevert(messages); s != nil {
		signals = append(signals, *s)
	}
	return signals
}

// detectRetryLoop fires when three assistant messages in a row carry error
// vocabulary. Interleaved user messages do not break the run.
func detectRetryLoop(messages []session.Message) *Signal {
	run := 0
	for _, m := range messages {
		if m.Role != "assistant" {
			continue
		}
		if !errorVocab.MatchString(m.Content) {
			run = 0
			continue
		}
		run++
		if run >= retryLoopRun {
			return &Signal{Kind: SignalRetryLoop, Evidence: llm.Truncate(m.Content, 300)}
		}
	}
	return nil
}

// detectBacktracking fires when the same file path shows up in three or
// more edit/write operations within a sliding window of six.
func detectBacktracking(messages []session.Message) *Signal {
	var ops []string
	for _, m := range messages {
		for _, match := range editedPath.FindAllStringSubmatch(m.Content, -1) {
			ops = append(ops, match[1])
		}
	}

	for i := range ops {
		start := i - backtrackWindow + 1
		if start < 0 {
			start = 0
		}
		count := 0
		for _, p := range ops[start : i+1] {
			if p == ops[i] {
				count++
			}
		}
		if count >= backtrackMinEdits {
			return &Signal{Kind: SignalBacktracking, Evidence: ops[i]}
		}
	}
	return nil
}

func detectGitRevert(messages []session.Message) *Signal {
	for _, m := range messages {
		if loc := revertCmd.FindString(m.Content); loc != "" {
			return &Signal{Kind: SignalGitRevert, Evidence: loc}
		}
	}
	return nil
}
