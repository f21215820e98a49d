package cmd

import (
	"time"

	"github.com/grovetools/socratic/cli"
	"github.com/grovetools/socratic/config"
	"github.com/grovetools/socratic/pkg/completion"
	"github.com/grovetools/socratic/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the socratic command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"socratic",
		"Socratic math tutor bot and its CI QA agent",
	)
	cli.SetVersionTemplate(rootCmd, version.GetInfo())

	rootCmd.AddCommand(NewBotCmd())
	rootCmd.AddCommand(NewQACmd())
	rootCmd.AddCommand(NewPlanCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("socratic", version.GetInfo()))

	cli.ApplyStyledHelpRecursive(rootCmd)
	return rootCmd
}

func newCompleter(cfg *config.Config) *completion.Client {
	return completion.New(completion.Config{
		APIKey:     cfg.Anthropic.APIKey,
		Model:      cfg.Anthropic.Model,
		MaxTokens:  cfg.Anthropic.MaxTokens,
		MaxRetries: cfg.Anthropic.MaxRetries,
		Timeout:    time.Duration(cfg.Anthropic.TimeoutSeconds) * time.Second,
		BaseURL:    cfg.Anthropic.BaseURL,
	})
}
