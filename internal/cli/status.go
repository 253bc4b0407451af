package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgcopy/internal/config"
	"github.com/vvka-141/pgcopy/internal/db"
	"github.com/vvka-141/pgcopy/internal/logging"
	"github.com/vvka-141/pgcopy/internal/marker"
	"github.com/vvka-141/pgcopy/internal/schema"
	"github.com/vvka-141/pgcopy/internal/services"
	"github.com/vvka-141/pgcopy/internal/ui"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

var statusCmd = &cobra.Command{
	Use:   "status (--update-id <id> | --table <table>)",
	Short: "Show whether runs are recorded as complete",
	Long: `Status reads the marker table.

With --update-id it reports one run as complete, absent or unknown. Unknown
means the marker table could not be read and exits with code 17, so a
scheduler can tell "not done" from "could not check".

With --table it lists every recorded run for that table, newest first.

Examples:
  pgcopy status --update-id events-2024-03-01 -d warehouse
  pgcopy status --table events -d warehouse`,
	Args: NoArgs,
	RunE: runStatus,
}

// markerFlagValues are shared by status and mark.
type markerFlagValues struct {
	conn        connectionFlags
	updateID    string
	table       string
	markerTable string
	timeout     time.Duration
	force       bool
}

var statusFlags markerFlagValues

func init() {
	rootCmd.AddCommand(statusCmd)
	registerMarkerFlags(statusCmd, &statusFlags)
}

func registerMarkerFlags(cmd *cobra.Command, f *markerFlagValues) {
	registerConnectionFlags(cmd, &f.conn)

	cmd.Flags().StringVar(&f.updateID, "update-id", "", "Update id of the run")
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "Target table of the run")
	cmd.Flags().StringVar(&f.markerTable, "marker-table", pgcopy.DefaultMarkerTable,
		"Table recording completed runs")
	cmd.Flags().DurationVar(&f.timeout, "timeout", time.Minute, "Timeout for the whole command")

	_ = cmd.RegisterFlagCompletionFunc("table", completeTables)
}

// markerSession is an open connection plus the marker store on it.
type markerSession struct {
	session *services.Session
	store   *marker.Store
}

func (m *markerSession) Close() { m.session.Close() }

// openMarkerSession connects and builds the marker store.
func openMarkerSession(ctx context.Context, cmd *cobra.Command, f *markerFlagValues, projectCfg *config.ProjectConfig, logger pgcopy.Logger) (*markerSession, error) {
	connConfig, err := resolveConnectionFromFlags(f.conn, projectCfg, getVerboseFlag(cmd))
	if err != nil {
		return nil, err
	}

	markerTable := projectCfg.LoadOptions().MarkerTable
	if cmd.Flags().Changed("marker-table") {
		markerTable = f.markerTable
	}

	svc := services.NewCopyService(db.NewConnector, logger)
	session, err := svc.Open(ctx, connConfig)
	if err != nil {
		return nil, err
	}

	conn := session.Conn()
	return &markerSession{
		session: session,
		store:   marker.NewStore(conn, schema.NewResolver(conn, logger), markerTable, logger),
	}, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	f := &statusFlags
	if (f.updateID == "") == (f.table == "") {
		return usageError(fmt.Errorf("exactly one of --update-id or --table is required"))
	}

	verbose := getVerboseFlag(cmd)
	projectCfg, err := loadProjectConfig(getConfigDir(cmd))
	if err != nil {
		return err
	}
	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, f.timeout)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(timeout, "status")
	defer cancel()

	logger := logging.NewConsoleLogger(verbose)
	ms, err := openMarkerSession(ctx, cmd, f, projectCfg, logger)
	if err != nil {
		return err
	}
	defer ms.Close()

	return reportStatus(ctx, os.Stdout, ms.store, f, ui.Styled(os.Stdout), logger)
}

// markerReader is the part of marker.Store that status reads from.
type markerReader interface {
	Check(ctx context.Context, updateID string) (pgcopy.MarkerState, error)
	Get(ctx context.Context, updateID string) (*pgcopy.MarkerRecord, error)
	List(ctx context.Context, targetTable string) ([]pgcopy.MarkerRecord, error)
}

// reportStatus renders one run (--update-id) or all runs of a table (--table).
// Backend failures are returned with ErrMarkerUnknown and their cause.
func reportStatus(ctx context.Context, w io.Writer, store markerReader, f *markerFlagValues, styled bool, logger pgcopy.Logger) error {
	if f.updateID != "" {
		state, err := store.Check(ctx, f.updateID)
		var record *pgcopy.MarkerRecord
		if state == pgcopy.MarkerPresent {
			var getErr error
			if record, getErr = store.Get(ctx, f.updateID); getErr != nil {
				logger.Error("Failed to read marker record for %s: %v", f.updateID, getErr)
			}
		}
		ui.RenderMarkerState(w, f.updateID, state, record, styled)
		return err
	}

	records, err := store.List(ctx, f.table)
	if err != nil {
		return fmt.Errorf("failed to list runs for %s: %w: %w", f.table, pgcopy.ErrMarkerUnknown, err)
	}
	if len(records) == 0 {
		logger.Info("No completed runs recorded for %s", f.table)
		return nil
	}
	for i := range records {
		ui.RenderMarkerState(w, records[i].UpdateID, pgcopy.MarkerPresent, &records[i], styled)
	}
	return nil
}
