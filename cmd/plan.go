package cmd

import (
	"fmt"

	"github.com/grovetools/socratic/cli"
	"github.com/grovetools/socratic/internal/qa"
	"github.com/spf13/cobra"
)

func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect QA plan files",
	}

	cmd.AddCommand(cli.NewJSONDocCommand("schema", "Print the JSON Schema of QA plan files", qa.PlanSchema))
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <plan.yaml>",
		Short: "Check a plan file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := qa.LoadPlan(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan %s is valid (%d steps)\n", plan.Name, len(plan.Steps))
			return nil
		},
	})
	return cmd
}
