package session

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is one bounded fragment of a transcript. Indices are contiguous
// from 0 within a session; (session_id, index) is the chunk identity.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits cleaned transcripts into overlapping chunks of bounded
// rune length. Splits prefer paragraph boundaries, then sentence
// boundaries, then hard cuts.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

const (
	defaultChunkSize    = 1500
	defaultChunkOverlap = 200
	defaultMinChunkSize = 100
)

// NewChunker builds a chunker; non-positive arguments take the defaults.
func NewChunker(size, overlap, minSize int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap <= 0 {
		overlap = defaultChunkOverlap
	}
	if minSize <= 0 {
		minSize = defaultMinChunkSize
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap, minSize: minSize}
}

// =============================================================================
// CLEANING
// =============================================================================

var (
	timestampPrefix = regexp.MustCompile(`(?m)^\[?\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?\]?\s*`)
	clockPrefix     = regexp.MustCompile(`(?m)^\[\d{2}:\d{2}(?::\d{2})?\]\s*`)
	trailingSpace   = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes a transcript before splitting: timestamp prefixes go,
// trailing whitespace goes, runs of blank lines collapse to one.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = timestampPrefix.ReplaceAllString(text, "")
	text = clockPrefix.ReplaceAllString(text, "")
	text = trailingSpace.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// =============================================================================
// SPLITTING
// =============================================================================

// Split cleans the text and cuts it into chunks. A document that fits the
// chunk size yields exactly one chunk; fragments shorter than the minimum
// are dropped.
func (c *Chunker) Split(text string) []Chunk {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}
	if n := utf8.RuneCountInString(cleaned); n <= c.size {
		if n < c.minSize {
			return nil
		}
		return []Chunk{{Index: 0, Text: cleaned}}
	}

	var (
		chunks []Chunk
		cur    strings.Builder
		curLen int
		seeded int // runes of cur that are pure overlap carry
	)
	flush := func() string {
		text := strings.TrimSpace(cur.String())
		cur.Reset()
		curLen = 0
		seeded = 0
		if utf8.RuneCountInString(text) >= c.minSize {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: text})
		}
		return text
	}

	for _, piece := range c.pieces(cleaned) {
		n := utf8.RuneCountInString(piece)
		if curLen > seeded && curLen+2+n > c.size {
			prev := flush()
			// Carry the overlap only when the next piece still fits behind
			// it; an overlap that crowds out content would flush as a chunk
			// of its own.
			if tail := overlapTail(prev, c.overlap); tail != "" {
				if tn := utf8.RuneCountInString(tail); tn+2+n <= c.size {
					cur.WriteString(tail)
					curLen = tn
					seeded = tn
				}
			}
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(piece)
		curLen += n
	}
	flush()
	return chunks
}

// pieces cuts the document into fragments that each fit the chunk size:
// paragraphs first, oversized paragraphs by sentence, oversized sentences
// by hard rune cuts.
func (c *Chunker) pieces(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= c.size {
			out = append(out, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if utf8.RuneCountInString(sent) <= c.size {
				out = append(out, sent)
				continue
			}
			out = append(out, hardSplit(sent, c.size)...)
		}
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`([.!?])[ \t]+`)

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	marked = strings.ReplaceAll(marked, "\n", "\x00")
	var out []string
	for _, s := range strings.Split(marked, "\x00") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hardSplit(text string, maxLen int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/maxLen+1)
	for i := 0; i < len(runes); i += maxLen {
		end := i + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// overlapTail returns the last overlap runes of the previous chunk, snapped
// forward to a word boundary so the next chunk does not open mid-word.
func overlapTail(text string, overlap int) string {
	if overlap <= 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= overlap {
		return text
	}
	tail := string(runes[len(runes)-overlap:])
	if i := strings.IndexAny(tail, " \n"); i >= 0 && i+1 < len(tail) {
		tail = tail[i+1:]
	}
	return strings.TrimSpace(tail)
}
