package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hindsight/internal/config"
	"hindsight/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hindsight",
	Short: "hindsight - learning pipeline for coding-assistant workspaces",
	Long: `hindsight turns a coding assistant's session transcripts into learned
behavior: scored memories, prevention rules, and reusable skills.

The pipeline ingests transcripts into a Qdrant vector store, scores every
chunk for quality, extracts candidate rules from contrasting outcomes,
turns failure signals into reflections, proposes SKILL.md documents from
high-quality sessions, and reinforces or prunes the learned rules as new
evidence arrives.

Learned state lives in the workspace: rules.json and the AGENTS.md mirror
at the root, everything else under .hindsight/.

Run 'hindsight ingest' after a work session to process everything new.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if workspace == "" {
			workspace, err = config.FindWorkspaceRoot()
			if err != nil {
				return fmt.Errorf("failed to resolve workspace: %w", err)
			}
		}
		logger.Debug("Workspace resolved", zap.String("root", workspace))

		// File logging is config-driven and off by default; a failure to
		// set it up never blocks the command.
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("File logging unavailable", zap.Error(err))
		}
		if err := logging.InitAudit(); err != nil {
			logger.Warn("Audit trail unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: discovered via .hindsight marker)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Minute, "Operation timeout")

	// Add commands to root
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(reflectionsCmd)
	rootCmd.AddCommand(skillGenCmd)
	rootCmd.AddCommand(reinforceCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(skillsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
