package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reflectionSession string
	skillSession      string
	pruneDryRun       bool
)

// insightsCmd extracts candidate rules from contrasting chunk pairs.
var insightsCmd = &cobra.Command{
	Use:   "extract-insights",
	Short: "Extract candidate rules from high/low quality contrast pairs",
	Long: `Pairs high-quality chunks with low-quality ones and asks the model
what separates them. Each extracted insight goes through the full rule
protocol: length check, duplicate check against active rules, validation,
then autonomous application or staging for review depending on the
configured approval mode.`,
	RunE: runExtractInsights,
}

// reflectionsCmd generates reflections for sessions with failure signals.
var reflectionsCmd = &cobra.Command{
	Use:   "generate-reflections",
	Short: "Generate root-cause reflections for sessions with failure signals",
	Long: `Scans transcripts for failure signals (retry loops, backtracking,
git reverts), asks the model for a root cause and a prevention rule,
stores the reflection for retrieval, and feeds the prevention rule into
the rule protocol. Each session is reflected on at most once.`,
	RunE: runGenerateReflections,
}

// skillGenCmd proposes SKILL.md documents from high-quality sessions.
var skillGenCmd = &cobra.Command{
	Use:   "propose-skills",
	Short: "Propose reusable skills from high-quality sessions",
	Long: `Summarizes each qualifying session and drafts a SKILL.md document
from it. Sessions must clear the quality gate and be novel against prior
stored work. Drafts become review candidates, or are installed directly
in autonomous mode. Approve or reject candidates with 'hindsight skills'.`,
	RunE: runProposeSkills,
}

// reinforceCmd scans for evidence supporting active rules.
var reinforceCmd = &cobra.Command{
	Use:   "reinforce",
	Short: "Scan recent high-quality chunks for evidence supporting active rules",
	RunE:  runReinforce,
}

// pruneCmd retires stale, unproven rules.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Retire active rules that aged out without enough reinforcement",
	RunE:  runPrune,
}

// syncCmd rebuilds the rule search mirror.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the vector-store rule mirror from the registry",
	Long: `Re-embeds and upserts every active rule and deletes mirror entries
whose rule is no longer active. The registry file stays the source of
truth; this command only repairs the search index. Safe to run anytime.`,
	RunE: runSync,
}

func init() {
	reflectionsCmd.Flags().StringVar(&reflectionSession, "session", "", "Limit the pass to one session ID")
	skillGenCmd.Flags().StringVar(&skillSession, "session", "", "Limit the pass to one session ID")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Report what would be retired without changing the registry")
}

func runExtractInsights(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	sum, err := p.Insights.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Extracted %d candidates from %d pairs; %d became active rules\n",
		sum.Candidates, sum.Pairs, sum.Added)
	return nil
}

func runGenerateReflections(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	sum, err := p.Reflections.Run(ctx, reflectionSession)
	if err != nil {
		return err
	}
	fmt.Printf("Examined %d sessions: %d signals, %d reflections stored, %d rules proposed\n",
		sum.Examined, sum.Signals, sum.Reflections, sum.RulesAdded)
	return nil
}

func runProposeSkills(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	sum, err := p.SkillGen.Run(ctx, skillSession)
	if err != nil {
		return err
	}
	fmt.Printf("Examined %d sessions: %d promoted, %d candidates, %d below quality, %d not novel\n",
		sum.Examined, sum.Promoted, sum.Candidates, sum.SkippedQuality, sum.SkippedNovelty)
	return nil
}

func runReinforce(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	sum, err := p.Reinforcer.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Scanned %d rules: %d reinforced by %d supporting chunks\n",
		sum.Scanned, sum.Reinforced, sum.Hits)
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	pruned, err := p.Rules.PruneStale(ctx, pruneDryRun)
	if err != nil {
		return err
	}
	fmt.Print(formatPrunedRules(pruned, pruneDryRun))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	upserted, removed, err := p.Rules.SyncRulesToQdrant(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Rule mirror synced: %d upserted, %d stray entries removed\n", upserted, removed)
	return nil
}
