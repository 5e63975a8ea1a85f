// Package rules owns the rule lifecycle: the durable registry file, the
// proposal protocol that validates and deduplicates incoming rules, the
// category tagger, and the mirrors (vector collection, AGENTS.md) that
// surface active rules back into the assistant's context.
package rules

import (
	"fmt"
	"strings"
	"time"
)

// Rule statuses. Retired is terminal: a retired rule stays in the registry
// for history and never returns to any other status.
const (
	StatusProposed = "proposed"
	StatusActive   = "active"
	StatusStale    = "stale"
	StatusRetired  = "retired"
)

// Rule sources.
const (
	SourceInsight    = "insight-extraction"
	SourceReflection = "reflection"
	SourceManual     = "manual"
)

// ExemptReinforcementCount marks a rule as proven: at or above this many
// reinforcements it is never pruned.
const ExemptReinforcementCount = 10

// MaxRuleWords bounds rule text; anything longer is not actionable.
const MaxRuleWords = 50

// Rule is one row of the registry file. Field names are the file format.
type Rule struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Source             string   `json:"source"`
	Status             string   `json:"status"`
	ReinforcementCount int      `json:"reinforcementCount"`
	CreatedAt          string   `json:"createdAt"`
	LastReinforced     string   `json:"lastReinforced"`
	SourceSessionIDs   []string `json:"sourceSessionIds"`
	Categories         []string `json:"categories"`
}

// NewID derives an 8-hex-char rule ID from the rule text and the current
// nanotime. taken reports IDs already in use; NewID re-rolls until it finds
// a free one.
func NewID(text string, taken func(string) bool) string {
	for {
		id := hashID(text + time.Now().Format(time.RFC3339Nano))
		if taken == nil || !taken(id) {
			return id
		}
	}
}

func hashID(s string) string {
	h := uint32(0)
	for _, c := range s {
		h = h*31 + uint32(c)
	}
	return fmt.Sprintf("%08x", h)
}

// NowISO is the registry timestamp format.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ParseISO reads a registry timestamp; zero time on failure so age checks
// treat unparseable stamps as very old.
func ParseISO(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DaysSince returns the age of t in fractional days.
func DaysSince(t time.Time) float64 {
	return time.Since(t).Hours() / 24
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// HasSourceSession reports whether sid contributed to this rule.
func (r *Rule) HasSourceSession(sid string) bool {
	for _, s := range r.SourceSessionIDs {
		if s == sid {
			return true
		}
	}
	return false
}
