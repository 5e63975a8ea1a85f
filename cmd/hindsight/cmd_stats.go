package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hindsight/internal/config"
	"hindsight/internal/pipeline"
)

// statsCmd summarizes the workspace learning state.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show workspace learning statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}

	counts, err := p.Store.Counts(ctx)
	if err != nil {
		return err
	}
	sessions, err := p.Store.SessionIDs(ctx)
	if err != nil {
		return err
	}

	candidates, err := p.Library.Candidates()
	if err != nil {
		logger.Warn("Could not read skill candidates", zap.Error(err))
	}
	promoted, err := p.Library.Promoted()
	if err != nil {
		logger.Warn("Could not read installed skills", zap.Error(err))
	}

	fmt.Print(renderStats(statsData{
		Counts:     counts,
		Sessions:   len(sessions),
		Review:     p.Rules.Review(),
		Candidates: len(candidates),
		Promoted:   len(promoted),
		Reflected:  pipeline.LoadLedger(config.ReflectionLedgerPath(workspace)).Len(),
		Skilled:    pipeline.LoadLedger(config.SkillLedgerPath(workspace)).Len(),
	}))
	return nil
}
