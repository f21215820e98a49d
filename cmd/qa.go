package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/socratic/cli"
	"github.com/grovetools/socratic/internal/qa"
	"github.com/spf13/cobra"
)

func NewQACmd() *cobra.Command {
	var opts qa.RunOptions

	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Run the QA plan and publish the report",
		Long: `Runs every step of a QA plan, saves a JSON report under the reports
directory and opens a draft pull request carrying it. Without GITHUB_TOKEN the
report is written to suggestions.md instead. Without ANTHROPIC_API_KEY the run
is a dry run.

Examples:
  # Run the default smoke plan
  socratic qa

  socratic qa --plan ai_agent/tests/plan_smoke.yaml --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			publisher, err := qa.NewPublisher(qa.PublisherConfig{
				Repo:       cfg.GitHub.Repo,
				Token:      cfg.GitHub.Token,
				APIURL:     cfg.GitHub.APIURL,
				ReportsDir: cfg.Agent.ReportsDir,
				RemotePath: cfg.Agent.RemoteReportPath,
			})
			if err != nil {
				return err
			}

			result, err := qa.NewAgent(cfg, newCompleter(cfg), publisher).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "Plan %s: %d passed, %d failed\n", result.Report.Plan, result.Report.Passed, result.Report.Failed)
			fmt.Fprintf(out, "Report: %s\n", result.ReportPath)
			switch {
			case result.Publish.PRURL != "":
				fmt.Fprintf(out, "Pull request: %s\n", result.Publish.PRURL)
			case result.Publish.Saved != "":
				fmt.Fprintf(out, "Saved: %s\n", result.Publish.Saved)
			case result.Publish.Error != "":
				fmt.Fprintf(out, "Publish failed: %s\n", result.Publish.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.PlanPath, "plan", "", "Plan file (default: agent.plan_path)")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "Mark the run as allowed to apply changes")
	cmd.Flags().BoolVar(&opts.Autodeploy, "autodeploy", false, "Mark the run as allowed to deploy")
	return cmd
}
