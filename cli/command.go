package cli

import (
	"os"

	"github.com/grovetools/socratic/config"
	"github.com/spf13/cobra"
)

// CommandOptions holds common options for socratic commands
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with the standard flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Component loggers are built lazily, so the level set here
			// reaches every one of them.
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && os.Getenv("SOCRATIC_LOG_LEVEL") == "" {
				os.Setenv("SOCRATIC_LOG_LEVEL", "debug")
			}
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to socratic.yml or socratic.toml")

	SetStyledHelp(cmd)

	return cmd
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// LoadConfig loads the file named by --config, or searches upward from the
// working directory when the flag is empty.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path := GetOptions(cmd).ConfigFile; path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}
