package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hindsight/internal/pipeline"
)

var (
	rescore      bool
	pendingOnly  bool
	scoreSession string
)

// scoreCmd runs one quality-scoring pass.
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score stored chunks for quality",
	Long: `Assigns every unscored chunk a 1-10 quality score. Obvious noise is
scored by heuristics without an LLM call; the rest goes to the model in
batches. Unparseable or failed batches fall back to the neutral default
so a pass always terminates.

An interrupted pass marks its in-flight chunks pending; resume it with
--pending. --rescore revisits chunks that already have a score.

Examples:
  hindsight score
  hindsight score --pending
  hindsight score --rescore --session 2026-08-21-refactor`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().BoolVar(&rescore, "rescore", false, "Also revisit chunks that already have a quality score")
	scoreCmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only score chunks marked pending by an interrupted pass")
	scoreCmd.Flags().StringVar(&scoreSession, "session", "", "Limit the pass to one session ID")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}

	sum, err := p.Scorer.Run(ctx, pipeline.ScoreOptions{
		Rescore:     rescore,
		PendingOnly: pendingOnly,
		SessionID:   scoreSession,
	})
	if err != nil {
		return err
	}
	fmt.Println(formatScoreSummary(sum))
	return nil
}
