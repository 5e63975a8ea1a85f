package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rulesCmd groups registry review operations.
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Review and manage the learned rule registry",
}

var rulesReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List proposed and active rules",
	RunE:  runRulesReview,
}

var rulesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Re-validate and activate all proposed rules",
	Long: `Runs every proposed rule through validation again and activates the
ones that pass, respecting the active-rule cap. Rules that fail stay
proposed for another look.`,
	RunE: runRulesApply,
}

var rulesRetireCmd = &cobra.Command{
	Use:   "retire [id]",
	Short: "Retire a rule by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRetire,
}

func init() {
	rulesCmd.AddCommand(rulesReviewCmd)
	rulesCmd.AddCommand(rulesApplyCmd)
	rulesCmd.AddCommand(rulesRetireCmd)
}

func runRulesReview(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	review := p.Rules.Review()
	fmt.Print(renderRuleList("Proposed rules", review.Proposed))
	fmt.Println()
	fmt.Print(renderRuleList("Active rules", review.Active))
	return nil
}

func runRulesApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	applied, err := p.Rules.ApplyPending(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Activated %d proposed rules\n", applied)
	return nil
}

func runRulesRetire(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	if err := p.Rules.RetireRule(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Rule %s retired\n", args[0])
	return nil
}
