package main

import (
	"fmt"
	"strconv"
	"strings"

	"hindsight/internal/pipeline"
	"hindsight/internal/qdrant"
	"hindsight/internal/rules"
)

// Pure render helpers. Commands gather the data, these shape the output.

func formatIngestSummary(sum pipeline.IngestSummary) string {
	return fmt.Sprintf("Ingested %d sessions: %d chunks stored, %d skipped, %d errors",
		sum.Processed, sum.Chunks, sum.Skipped, sum.Errors)
}

func formatScoreSummary(sum pipeline.ScoreSummary) string {
	if sum.Marked > 0 {
		return fmt.Sprintf("Marked %d chunks pending", sum.Marked)
	}
	total := sum.Heuristic + sum.LLMScored + sum.Defaulted
	return fmt.Sprintf("Scored %d chunks: %d heuristic, %d model, %d defaulted",
		total, sum.Heuristic, sum.LLMScored, sum.Defaulted)
}

func formatPrunedRules(pruned []rules.Rule, dryRun bool) string {
	if len(pruned) == 0 {
		return "Nothing to prune\n"
	}

	var sb strings.Builder
	if dryRun {
		fmt.Fprintf(&sb, "Would retire %d rules:\n", len(pruned))
	} else {
		fmt.Fprintf(&sb, "Retired %d rules:\n", len(pruned))
	}
	for _, r := range pruned {
		fmt.Fprintf(&sb, "  %s  %2d reinforcements  %s\n", r.ID, r.ReinforcementCount, truncate(r.Text, 70))
	}
	return sb.String()
}

type statsData struct {
	Counts     map[string]int
	Sessions   int
	Review     rules.ReviewSummary
	Candidates int
	Promoted   int
	Reflected  int
	Skilled    int
}

func renderStats(d statsData) string {
	table := pipeline.NewTable("Metric", "Count")
	table.AddRow("Sessions ingested", strconv.Itoa(d.Sessions))
	table.AddRow("Chunks stored", strconv.Itoa(d.Counts[qdrant.CollectionSessions]))
	table.AddRow("Reflections stored", strconv.Itoa(d.Counts[qdrant.CollectionReflections]))
	table.AddRow("Rule mirror points", strconv.Itoa(d.Counts[qdrant.CollectionRules]))
	table.AddRow("Rules active", strconv.Itoa(len(d.Review.Active)))
	table.AddRow("Rules proposed", strconv.Itoa(len(d.Review.Proposed)))
	table.AddRow("Rules retired", strconv.Itoa(len(d.Review.Retired)))
	table.AddRow("Skill candidates", strconv.Itoa(d.Candidates))
	table.AddRow("Skills installed", strconv.Itoa(d.Promoted))
	table.AddRow("Sessions reflected", strconv.Itoa(d.Reflected))
	table.AddRow("Sessions skill-scanned", strconv.Itoa(d.Skilled))
	return table.Render()
}

func renderRuleList(title string, list []rules.Rule) string {
	if len(list) == 0 {
		return fmt.Sprintf("%s: none\n", title)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d):\n", title, len(list))
	table := pipeline.NewTable("ID", "Source", "Reinforced", "Text")
	for _, r := range list {
		table.AddRow(r.ID, r.Source, strconv.Itoa(r.ReinforcementCount), truncate(r.Text, 60))
	}
	sb.WriteString(table.Render())
	return sb.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
