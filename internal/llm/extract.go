package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// LENIENT RESPONSE PARSING
// =============================================================================
//
// LLM responses arrive in whatever envelope the provider felt like: a bare
// value, a {result: ...} or {content: ...} wrapper, content-block arrays
// with text fields, or fenced markdown. Parsers here never return errors;
// callers fall back to defaults on the ok=false path.

// ExtractJSON returns the first balanced JSON object in s, or "{}" when
// there is none.
func ExtractJSON(s string) string {
	if out := extractBalanced(s, '{', '}'); out != "" {
		return out
	}
	return "{}"
}

// ExtractJSONArray returns the first balanced JSON array in s, or "".
func ExtractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

// extractBalanced scans for the first balanced open..close region,
// skipping brackets inside JSON strings.
func extractBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// responseEnvelope covers the wrapper shapes providers produce.
type responseEnvelope struct {
	Result  json.RawMessage `json:"result"`
	Content json.RawMessage `json:"content"`
	Text    string          `json:"text"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Unwrap peels provider envelopes off a response until the payload text
// remains: code fences, {result}/{content}/{text} wrappers, and
// content-block arrays. Bounded so a pathological response cannot loop.
func Unwrap(response string) string {
	s := stripCodeFence(strings.TrimSpace(response))
	for i := 0; i < 4; i++ {
		if !strings.HasPrefix(s, "{") {
			return s
		}
		var env responseEnvelope
		if err := json.Unmarshal([]byte(ExtractJSON(s)), &env); err != nil {
			return s
		}
		inner, ok := envelopeInner(env)
		if !ok {
			return s
		}
		s = stripCodeFence(strings.TrimSpace(inner))
	}
	return s
}

func envelopeInner(env responseEnvelope) (string, bool) {
	if env.Text != "" {
		return env.Text, true
	}
	for _, raw := range []json.RawMessage{env.Result, env.Content} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s, true
		}
		var blocks []contentBlock
		if json.Unmarshal(raw, &blocks) == nil && len(blocks) > 0 {
			var parts []string
			for _, b := range blocks {
				if b.Text != "" {
					parts = append(parts, b.Text)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "\n"), true
			}
			continue
		}
		// Nested envelope or other JSON value: recurse on its raw form.
		return string(raw), true
	}
	return "", false
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\n(.*?)\n?```$")

func stripCodeFence(s string) string {
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseScoreArray pulls an integer score array out of a response. The
// array may be wrapped in any envelope; values are clamped to [0, 10];
// extra entries are truncated. ok is false when no usable array of at
// least want entries can be found.
func ParseScoreArray(response string, want int) ([]int, bool) {
	arr := ExtractJSONArray(Unwrap(response))
	if arr == "" {
		return nil, false
	}

	// Models sometimes emit floats; accept and round down.
	var values []float64
	if err := json.Unmarshal([]byte(arr), &values); err != nil {
		return nil, false
	}
	if len(values) < want {
		return nil, false
	}

	scores := make([]int, want)
	for i := 0; i < want; i++ {
		score := int(values[i])
		if score < 0 {
			score = 0
		}
		if score > 10 {
			score = 10
		}
		scores[i] = score
	}
	return scores, true
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// ParseBullets returns the bullet-line contents of a response, tolerating
// -, *, • and numbered markers. Non-bullet lines are ignored.
func ParseBullets(response string) []string {
	var out []string
	for _, line := range strings.Split(Unwrap(response), "\n") {
		if !bulletPrefix.MatchString(line) {
			continue
		}
		text := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// ParseTaggedFields reads "TAG: value" lines for the given tags, tolerant
// of markdown bold markers and case. Values may continue across lines
// until the next recognized tag.
func ParseTaggedFields(response string, tags ...string) map[string]string {
	out := make(map[string]string, len(tags))
	var current string

	for _, line := range strings.Split(Unwrap(response), "\n") {
		trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
		matched := false
		for _, tag := range tags {
			prefix := tag + ":"
			if len(trimmed) >= len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
				current = tag
				out[tag] = strings.TrimSpace(strings.TrimLeft(trimmed[len(prefix):], "* "))
				matched = true
				break
			}
		}
		if matched || current == "" {
			continue
		}
		if trimmed != "" {
			out[current] = strings.TrimSpace(out[current] + "\n" + trimmed)
		}
	}
	return out
}

// Truncate shortens s to maxLen characters for log lines, adding "..." when
// anything was cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
