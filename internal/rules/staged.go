package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"hindsight/internal/logging"
)

// StagedChange is the human-review artifact written when a rule cannot be
// applied autonomously. The pipeline only ever writes these; reading and
// acting on them is the reviewer's job (or ApplyPending's, which works from
// the registry, not from these files).
type StagedChange struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	RuleID    string `json:"ruleId"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"createdAt"`
}

// StageRuleProposal records a proposed rule under dir as <uuid>.json.
// reason explains why the rule was staged instead of applied (approval mode,
// failed validation, validator unavailable).
func StageRuleProposal(dir string, rule Rule, reason string) (string, error) {
	change := StagedChange{
		ID:        uuid.New().String(),
		Kind:      "rule-proposal",
		RuleID:    rule.ID,
		Text:      rule.Text,
		Source:    rule.Source,
		Reason:    reason,
		CreatedAt: NowISO(),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating staged-changes dir: %w", err)
	}
	data, err := json.MarshalIndent(change, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding staged change: %w", err)
	}
	path := filepath.Join(dir, change.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing staged change: %w", err)
	}

	logging.RulesDebug("Staged rule %s for review: %s", rule.ID, reason)
	return path, nil
}
