package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AGENTS.md is shared with the user, so the mirror only owns the region
// between these markers. Everything outside them is preserved verbatim.
const (
	mirrorStartMarker = "<!-- hindsight:rules:start -->"
	mirrorEndMarker   = "<!-- hindsight:rules:end -->"
)

// WriteMirror renders the active rules into the managed block of the
// markdown mirror at path. A file without markers gets the block appended;
// a missing file is created outright.
func WriteMirror(path string, active []Rule) error {
	block := renderMirrorBlock(active)

	existing, err := os.ReadFile(path)
	var doc string
	switch {
	case os.IsNotExist(err):
		doc = "# Agent Guidelines\n\n" + block + "\n"
	case err != nil:
		return &IOError{Path: path, Op: "read", Err: err}
	default:
		doc = spliceMirrorBlock(string(existing), block)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".agents-*.md")
	if err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}
	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &IOError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &IOError{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &IOError{Path: path, Op: "rename", Err: err}
	}
	return nil
}

func renderMirrorBlock(active []Rule) string {
	var sb strings.Builder
	sb.WriteString(mirrorStartMarker + "\n")
	sb.WriteString("## Learned Rules\n\n")

	if len(active) == 0 {
		sb.WriteString("_No active rules yet._\n")
	} else {
		byCategory := map[string][]Rule{}
		for _, r := range active {
			cat := GeneralCategory
			if len(r.Categories) > 0 {
				cat = r.Categories[0]
			}
			byCategory[cat] = append(byCategory[cat], r)
		}
		cats := make([]string, 0, len(byCategory))
		for c := range byCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)

		for _, cat := range cats {
			sb.WriteString(fmt.Sprintf("### %s\n", cat))
			for _, r := range byCategory[cat] {
				sb.WriteString(fmt.Sprintf("- %s\n", r.Text))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString(mirrorEndMarker)
	return sb.String()
}

func spliceMirrorBlock(doc, block string) string {
	start := strings.Index(doc, mirrorStartMarker)
	end := strings.Index(doc, mirrorEndMarker)
	if start < 0 || end < 0 || end < start {
		if !strings.HasSuffix(doc, "\n") {
			doc += "\n"
		}
		return doc + "\n" + block + "\n"
	}
	return doc[:start] + block + doc[end+len(mirrorEndMarker):]
}
