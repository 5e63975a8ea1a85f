package pipeline

import (
	"regexp"
	"strings"
)

// =============================================================================
// HEURISTIC PRE-FILTER
// =============================================================================

// The pre-filter keeps obvious junk away from the LLM. Scores are on the
// 0-10 quality scale; nil means "let the LLM judge".

var (
	base64Run = regexp.MustCompile(`[A-Za-z0-9+/]{120,}={0,2}`)
	hexRun    = regexp.MustCompile(`(?i)\b[0-9a-f]{64,}\b`)

	stackLine = regexp.MustCompile(`(?m)^\s*(?:at\s+\S+\(|File "[^"]+", line \d+|goroutine \d+ \[|\S+\.go:\d+\s|Traceback \(most recent call last\))`)
	errorKey  = regexp.MustCompile(`"(?:error|errors|stack|stacktrace|errno)"\s*:`)

	routineCmd  = regexp.MustCompile(`(?m)^\s*(?:\$\s*)?(?:git\s+(?:status|log|diff|branch)\b|ls\b|ll\b|pwd\b|cd\s|cat\s|mkdir\s|touch\s|echo\s)`)
	listingLine = regexp.MustCompile(`(?m)^\s*(?:[-d][rwxst-]{9}\s|\S+/[\w.-]+\s*$)`)

	strongSignals = []string{
		"root cause",
		"decided to",
		"lesson learned",
		"here's why",
		"here is why",
		"the fix was",
		"turned out",
		"the problem was",
	}

	weakSignals = []string{
		"refactor",
		"migration",
		"performance",
		"security",
		"algorithm",
		"architecture",
		"optimiz",
		"concurren",
	}
)

// preFilter scores a chunk without an LLM call, or returns nil to defer.
// The checks run in priority order; the first match wins.
func preFilter(text string) *int {
	trimmed := strings.TrimSpace(text)

	if len(trimmed) < 50 || base64Run.MatchString(trimmed) || hexRun.MatchString(trimmed) {
		return intPtr(1)
	}

	if len(stackLine.FindAllStringIndex(trimmed, 5)) >= 4 ||
		len(errorKey.FindAllStringIndex(trimmed, 4)) >= 3 {
		return intPtr(2)
	}

	if isRoutineShell(trimmed) || isBulkListing(trimmed) {
		return intPtr(3)
	}

	lower := strings.ToLower(trimmed)
	for _, s := range strongSignals {
		if strings.Contains(lower, s) {
			return nil
		}
	}

	weak := 0
	for _, s := range weakSignals {
		if strings.Contains(lower, s) {
			weak++
		}
	}
	if weak >= 2 {
		return nil
	}

	return intPtr(4)
}

// isRoutineShell flags short chunks dominated by everyday shell commands.
func isRoutineShell(text string) bool {
	return len(text) < 600 && routineCmd.MatchString(text)
}

// isBulkListing flags chunks that are mostly directory or file listings.
func isBulkListing(text string) bool {
	lines := nonEmptyLines(text)
	if len(lines) < 8 {
		return false
	}
	hits := len(listingLine.FindAllStringIndex(text, -1))
	return hits >= 8 && hits*10 >= len(lines)*6
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func intPtr(n int) *int { return &n }
