package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgcopy/internal/logging"
	"github.com/vvka-141/pgcopy/internal/ui"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

var markCmd = &cobra.Command{
	Use:   "mark --update-id <id> --table <table>",
	Short: "Record a run as complete without loading rows",
	Long: `Mark writes the completion marker for a run, exactly as a successful load
would, without inserting any rows. Later loads with the same update id are
skipped.

Use it to adopt data that was loaded by other means. Marking an existing id
refreshes its timestamp.

Mark asks for confirmation by typing the update id. Use --force in scripts.

Examples:
  pgcopy mark --update-id events-2024-03-01 --table events -d warehouse
  pgcopy mark --update-id events-2024-03-01 --table events --force`,
	Args: NoArgs,
	RunE: runMark,
}

var markFlags markerFlagValues

func init() {
	rootCmd.AddCommand(markCmd)
	registerMarkerFlags(markCmd, &markFlags)
	markCmd.Flags().BoolVar(&markFlags.force, "force", false,
		"Skip the confirmation prompt")
}

// selectApprover picks the approver for mark. Without --force a terminal is
// required.
func selectApprover(force, interactive, verbose bool) (pgcopy.Approver, error) {
	if force {
		return ui.NewForcedApprover(verbose), nil
	}
	if !interactive {
		return nil, usageError(fmt.Errorf("confirmation requires a terminal; use --force in non-interactive sessions"))
	}
	return ui.NewInteractiveApprover(verbose), nil
}

func runMark(cmd *cobra.Command, args []string) error {
	f := &markFlags
	if f.updateID == "" || f.table == "" {
		return usageError(fmt.Errorf("--update-id and --table are required"))
	}
	identity := pgcopy.RunIdentity{TargetTable: f.table, UpdateID: f.updateID}
	if err := identity.Validate(); err != nil {
		return err
	}

	verbose := getVerboseFlag(cmd)
	approver, err := selectApprover(f.force, ui.IsInteractive(), verbose)
	if err != nil {
		return err
	}

	projectCfg, err := loadProjectConfig(getConfigDir(cmd))
	if err != nil {
		return err
	}
	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, f.timeout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(timeout, "mark")
	defer cancel()

	approved, err := approver.RequestApproval(ctx, identity.UpdateID)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("marking %s: %w", identity, pgcopy.ErrApprovalDenied)
	}

	logger := logging.NewConsoleLogger(verbose)
	ms, err := openMarkerSession(ctx, cmd, f, projectCfg, logger)
	if err != nil {
		return err
	}
	defer ms.Close()

	if err := ms.store.Touch(ctx, identity.UpdateID, identity.TargetTable); err != nil {
		return err
	}
	logger.Info("%s Marked %s complete", ui.SymbolCheck, identity)
	return nil
}
