package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hindsight/internal/config"
)

var (
	embedOnly bool
	rebuild   bool
	noBackup  bool
)

// ingestCmd runs ingestion and, unless --embed-only, the full stage set.
var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Ingest session transcripts and run the learning pipeline",
	Long: `Chunks, embeds and stores every new transcript, then runs the full
stage set: scoring, insight extraction, reflections, skill proposals,
reinforcement, pruning and the rule mirror sync.

Already-ingested sessions are skipped; one unreadable transcript never
stops the pass. With --embed-only the command stops after ingestion.

A failed stage is reported in the run summary and does not fail the
command; only configuration and startup errors do.

Examples:
  hindsight ingest
  hindsight ingest ~/claude-logs --embed-only
  hindsight ingest --rebuild`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&embedOnly, "embed-only", false, "Stop after chunking and embedding; skip the learning stages")
	ingestCmd.Flags().BoolVar(&rebuild, "rebuild", false, "Drop and recreate the session collection before ingesting")
	ingestCmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the JSONL vector backup even when configured")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return err
	}
	if noBackup && cfg.Ingest != nil {
		cfg.Ingest.BackupPath = ""
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	dir := p.SessionsDir
	if len(args) == 1 {
		dir = args[0]
	}

	if rebuild {
		logger.Info("Rebuilding session collection")
		if err := p.Store.RebuildSessions(ctx); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
	}

	logger.Info("Ingesting transcripts", zap.String("dir", dir))
	sum, err := p.Ingestor.Run(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Println(formatIngestSummary(sum))

	if embedOnly {
		return nil
	}

	report := p.Orchestrator.Run(ctx)
	fmt.Println()
	fmt.Print(report.Summary())
	if err := config.EnsureWorkspaceMarker(workspace); err != nil {
		logger.Warn("Could not create workspace marker", zap.Error(err))
	}
	return nil
}
