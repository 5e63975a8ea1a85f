// Package pipeline contains the self-improvement stages: transcript
// ingestion, quality scoring, insight extraction, reflection generation,
// skill proposal, rule reinforcement and pruning, plus the orchestrator
// that runs them in order. Stages share a failure policy: external calls
// (LLM, vector store) degrade to logged fallbacks, never process crashes.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hindsight/internal/logging"
)

// Ledger records which sessions a stage has already considered, keyed by
// session id with the processing timestamp as value. Reflection and skill
// generation each keep their own ledger file.
type Ledger struct {
	path string
	done map[string]string
}

// LoadLedger reads a ledger file. Missing means empty; a corrupt file is
// logged and treated as empty, which only costs reprocessing.
func LoadLedger(path string) *Ledger {
	l := &Ledger{path: path, done: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l
	}
	if err != nil {
		logging.Pipeline("Ledger %s unreadable, starting empty: %v", filepath.Base(path), err)
		return l
	}
	if err := json.Unmarshal(data, &l.done); err != nil {
		logging.Pipeline("Ledger %s corrupt, starting empty: %v", filepath.Base(path), err)
		l.done = make(map[string]string)
	}
	return l
}

// Done reports whether a session was already processed.
func (l *Ledger) Done(sessionID string) bool {
	_, ok := l.done[sessionID]
	return ok
}

// MarkDone records a session as processed. Call Save to persist.
func (l *Ledger) MarkDone(sessionID string) {
	l.done[sessionID] = time.Now().UTC().Format(time.RFC3339)
}

// Len is the number of recorded sessions.
func (l *Ledger) Len() int { return len(l.done) }

// Save writes the ledger atomically next to its final path.
func (l *Ledger) Save() error {
	data, err := json.MarshalIndent(l.done, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}
