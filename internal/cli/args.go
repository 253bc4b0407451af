package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireInput validates that exactly one <input> argument is provided.
// Returns a helpful usage error if missing or too many.
func RequireInput(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return usageError(fmt.Errorf(`missing required argument: <input>

Usage: %s

Example:
  %s ./events.tsv --table events --column id:integer --column name:text
  %s s3://exports/events.tsv.zst --table events --reflect
  cat events.tsv | %s - --table events --reflect`, cmd.UseLine(), cmd.CommandPath(), cmd.CommandPath(), cmd.CommandPath()))
	}
	if len(args) > 1 {
		return usageError(fmt.Errorf("accepts 1 arg(s), received %d", len(args)))
	}
	return nil
}

// NoArgs is cobra.NoArgs reported as a usage error.
func NoArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}
