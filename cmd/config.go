package cmd

import (
	"fmt"

	"github.com/grovetools/socratic/cli"
	"github.com/grovetools/socratic/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "***"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the resolved configuration",
		Long: `Shows the configuration after merging, in order:
1. Built-in defaults
2. socratic.yml or socratic.toml (found by walking up from the current directory)
3. .env in the current directory
4. Environment variables
Secrets are masked. This is useful for debugging configuration issues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(redact(*cfg))
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.AddCommand(cli.NewJSONDocCommand("schema", "Print the JSON Schema of socratic.yml", config.GenerateSchema))
	return cmd
}

func redact(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Anthropic.APIKey)
	mask(&cfg.GitHub.Token)
	mask(&cfg.Telegram.Token)
	mask(&cfg.Telegram.WebhookSecret)
	return cfg
}
