// Package session parses coding-assistant transcripts and splits them into
// bounded chunks for embedding. Everything here is pure text work; file
// walking and store writes live in the pipeline.
package session

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMinMessageChars drops trivial acknowledgements ("ok", "yes") that
// carry no reusable signal.
const DefaultMinMessageChars = 10

// Message is one speaker-tagged transcript entry after extraction.
type Message struct {
	Role    string
	Content string
}

// Session files come in two shapes: entries wrapping the message under a
// "message" key (with an optional isMeta flag), and bare {role, content}
// entries. Content is a string or any JSON value.
type transcriptFile struct {
	Messages []json.RawMessage `json:"messages"`
}

type transcriptEntry struct {
	Message *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	IsMeta  bool            `json:"isMeta"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ParseTranscript extracts the speaker-tagged messages from a session file.
// Meta-tagged entries and contents shorter than minChars are dropped; a
// document without a messages array yields an empty slice. Only a document
// that is not JSON at all is an error.
func ParseTranscript(data []byte, minChars int) ([]Message, error) {
	if minChars <= 0 {
		minChars = DefaultMinMessageChars
	}

	var file transcriptFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("transcript is not valid JSON: %w", err)
	}

	var messages []Message
	for _, raw := range file.Messages {
		var entry transcriptEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			// Tolerate a single malformed entry rather than losing the session.
			continue
		}
		if entry.IsMeta {
			continue
		}

		role, content := entry.Role, entry.Content
		if entry.Message != nil {
			role, content = entry.Message.Role, entry.Message.Content
		}

		text := SanitizeUTF8(strings.TrimSpace(contentText(content)))
		if len(text) < minChars {
			continue
		}
		if role == "" {
			role = "unknown"
		}
		messages = append(messages, Message{Role: role, Content: text})
	}
	return messages, nil
}

// contentText renders a message content field as text: strings pass through,
// any other JSON value keeps its serialized form.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Flatten joins messages into one document with "[role]: " prefixes, the
// form the chunker and the LLM prompts consume.
func Flatten(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = fmt.Sprintf("[%s]: %s", m.Role, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// IDFromPath derives the session ID from a transcript filename.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SanitizeUTF8 replaces invalid byte sequences, including WTF-8 encoded
// lone surrogates, with U+FFFD. The vector store rejects payloads that are
// not valid UTF-8.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}
