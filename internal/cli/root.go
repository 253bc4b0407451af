package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

var rootCmd = &cobra.Command{
	Use:   "pgcopy",
	Short: "Idempotent, transactional table loads into PostgreSQL",
	Long: `pgcopy loads rows into a PostgreSQL table in batches inside a single
transaction, then records the run in a completion marker table. A run whose
update id is already recorded is skipped, so pgcopy can be re-run safely by
any scheduler.

Exit Codes:
  0  - Success (loaded, or skipped because already complete)
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or column definitions
  11 - Database connection failed
  12 - User declined to mark a run complete
  13 - Row insertion or commit failed; nothing was loaded
  15 - Target table could not be created or reflected
  16 - Rows committed but completion marker not observed
  17 - Completion state could not be determined
  18 - A row's field count differs from the table's column count`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout, os.Stderr, false)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for pgcopy")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().String("config-dir", ".", "Directory containing pgcopy.yaml and .env")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
}

// usageError marks err as a command-line usage error (exit code 2).
func usageError(err error) error {
	return fmt.Errorf("%w: %w", pgcopy.ErrUsage, err)
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

// getConfigDir returns the --config-dir flag value.
func getConfigDir(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("config-dir")
	if err != nil || dir == "" {
		return "."
	}
	return dir
}
