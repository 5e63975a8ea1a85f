package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hindsight/internal/pipeline"
)

// skillsCmd groups skill library operations.
var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Review and manage proposed and installed skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed skills and pending candidates",
	RunE:  runSkillsList,
}

var skillsApproveCmd = &cobra.Command{
	Use:   "approve [name]",
	Short: "Install a candidate skill into the library",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsApprove,
}

var skillsRejectCmd = &cobra.Command{
	Use:   "reject [name]",
	Short: "Reject a candidate skill, keeping the record for audit",
	Args:  cobra.ExactArgs(1),
	RunE:  runSkillsReject,
}

func init() {
	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsApproveCmd)
	skillsCmd.AddCommand(skillsRejectCmd)
}

func runSkillsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}

	promoted, err := p.Library.Promoted()
	if err != nil {
		return err
	}
	if len(promoted) == 0 {
		fmt.Println("Installed skills: none")
	} else {
		fmt.Printf("Installed skills (%d):\n", len(promoted))
		table := pipeline.NewTable("Name", "Description")
		for _, s := range promoted {
			table.AddRow(s.Name, truncate(s.Description, 70))
		}
		fmt.Print(table.Render())
	}

	candidates, err := p.Library.Candidates()
	if err != nil {
		return err
	}
	fmt.Println()
	if len(candidates) == 0 {
		fmt.Println("Candidates: none")
		return nil
	}
	fmt.Printf("Candidates (%d):\n", len(candidates))
	table := pipeline.NewTable("Name", "Status", "Quality", "Novelty", "Session")
	for _, c := range candidates {
		table.AddRow(c.Name, c.Status,
			strconv.FormatFloat(c.QualityScore, 'f', 1, 64),
			strconv.FormatFloat(c.NoveltyScore, 'f', 2, 64),
			c.SourceSessionID)
	}
	fmt.Print(table.Render())
	return nil
}

func runSkillsApprove(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	path, err := p.Library.Approve(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Skill %s installed at %s\n", args[0], path)
	return nil
}

func runSkillsReject(cmd *cobra.Command, args []string) error {
	ctx, cancel := stageContext()
	defer cancel()

	p, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	if err := p.Library.Reject(args[0]); err != nil {
		return err
	}
	fmt.Printf("Skill candidate %s rejected\n", args[0])
	return nil
}
