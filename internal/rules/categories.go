package rules

import "regexp"

// =============================================================================
// CATEGORY TAGGER
// =============================================================================
// Pure keyword matching against a fixed table. No LLM: categories exist so
// a human scanning AGENTS.md or `review` output can group rules, and a
// deterministic tagger keeps re-categorization stable across runs.

// GeneralCategory is the sentinel when nothing in the table matches.
const GeneralCategory = "general"

var categoryTable = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"git", regexp.MustCompile(`(?i)\b(git\b|commit|branch|merg|rebas|push|pull.?request|pr\b)`)},
	{"typescript", regexp.MustCompile(`(?i)\b(typescript|tsx?|javascript|npm|node|eslint)\b`)},
	{"debugging", regexp.MustCompile(`(?i)\b(debug|stack ?trace|breakpoint|root cause|reproduce|diagnos)`)},
	{"testing", regexp.MustCompile(`(?i)\b(test|spec|coverage|mock|fixture|assert|flaky)`)},
	{"architecture", regexp.MustCompile(`(?i)\b(architecture|design|interface|refactor|module|coupling|abstraction)`)},
	{"config", regexp.MustCompile(`(?i)\b(config|environment variable|env var|settings|yaml|toml)`)},
	{"security", regexp.MustCompile(`(?i)\b(security|secret|credential|token|auth|vulnerab|sanitiz)`)},
	{"planning", regexp.MustCompile(`(?i)\b(plan|scope|estimate|break down|task list|milestone)`)},
	{"deployment", regexp.MustCompile(`(?i)\b(deploy|releas|rollback|docker|kubernetes|container|ci\b|cd\b)`)},
	{"performance", regexp.MustCompile(`(?i)\b(performance|latency|memory|cache|optimi[sz]|profil|benchmark)`)},
	{"documentation", regexp.MustCompile(`(?i)\b(document|readme|comment|changelog|docstring)`)},
}

// Categorize tags rule text with every matching category. Always returns a
// non-empty set; "general" is the fallback.
func Categorize(text string) []string {
	var out []string
	for _, entry := range categoryTable {
		if entry.pattern.MatchString(text) {
			out = append(out, entry.name)
		}
	}
	if len(out) == 0 {
		return []string{GeneralCategory}
	}
	return out
}
