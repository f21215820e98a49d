package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewJSONDocCommand creates a command that prints a generated JSON document,
// such as a schema, to stdout.
func NewJSONDocCommand(use, short string, generate func() ([]byte, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
