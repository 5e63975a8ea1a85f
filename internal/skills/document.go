// Package skills stores the workflow playbooks the pipeline distills from
// high-quality sessions: SKILL.md documents with YAML front matter, the
// candidate lifecycle awaiting review, and the promoted library.
package skills

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one SKILL.md: a strict front matter header plus the three
// body sections the assistant needs to apply the skill.
type Document struct {
	Name           string
	Description    string
	AutoActivation []string

	WhenToUse    string
	Instructions string
	Verification string
}

type frontMatter struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	AutoActivation []string `yaml:"auto_activation,omitempty"`
}

var namePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ParseDocument reads a SKILL.md document, typically straight from an LLM
// response. The header is strict: kebab-case name, non-empty description.
// All three body sections must be present and non-empty; anything less is
// an error so malformed generations get discarded, not half-stored.
func ParseDocument(raw string) (*Document, error) {
	content := strings.ReplaceAll(raw, "\r\n", "\n")

	metaText, bodyText, ok := splitFrontMatter(content)
	if !ok {
		return nil, fmt.Errorf("skill document has no front matter")
	}

	var meta frontMatter
	if err := yaml.Unmarshal([]byte(metaText), &meta); err != nil {
		return nil, fmt.Errorf("parse skill front matter: %w", err)
	}

	name := NormalizeName(meta.Name)
	if name == "" {
		return nil, fmt.Errorf("skill document missing name")
	}
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("skill name %q is not kebab-case", meta.Name)
	}
	description := strings.TrimSpace(meta.Description)
	if description == "" {
		return nil, fmt.Errorf("skill %s missing description", name)
	}

	sections := splitSections(bodyText)
	doc := &Document{
		Name:           name,
		Description:    description,
		AutoActivation: meta.AutoActivation,
		WhenToUse:      sections["when to use"],
		Instructions:   sections["instructions"],
		Verification:   sections["verification"],
	}
	for _, missing := range []struct{ heading, text string }{
		{"When to Use", doc.WhenToUse},
		{"Instructions", doc.Instructions},
		{"Verification", doc.Verification},
	} {
		if missing.text == "" {
			return nil, fmt.Errorf("skill %s missing section %q", name, missing.heading)
		}
	}
	return doc, nil
}

// Render writes the canonical SKILL.md form: front matter, a title derived
// from the name, and the three sections. ParseDocument(d.Render()) yields
// d back.
func (d *Document) Render() string {
	front, _ := yaml.Marshal(frontMatter{
		Name:           d.Name,
		Description:    d.Description,
		AutoActivation: d.AutoActivation,
	})

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(front)
	sb.WriteString("---\n\n")
	sb.WriteString("# " + titleize(d.Name) + "\n\n")
	sb.WriteString("## When to Use\n\n" + d.WhenToUse + "\n\n")
	sb.WriteString("## Instructions\n\n" + d.Instructions + "\n\n")
	sb.WriteString("## Verification\n\n" + d.Verification + "\n")
	return sb.String()
}

func splitFrontMatter(content string) (meta, body string, ok bool) {
	lines := strings.Split(content, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != "---" {
		return "", content, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", content, false
}

// splitSections cuts the body at "## Heading" lines, keyed by lowercased
// heading text. Text before the first section (the title line) is dropped.
func splitSections(body string) map[string]string {
	sections := map[string]string{}
	var current string
	var buf []string

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = nil
	}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") {
			flush()
			current = strings.ToLower(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}

// NormalizeName maps a free-form skill name to kebab-case for lookups and
// file paths.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")

	var sb strings.Builder
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			sb.WriteRune(c)
		}
	}

	parts := strings.FieldsFunc(sb.String(), func(r rune) bool { return r == '-' })
	return strings.Join(parts, "-")
}

func titleize(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
