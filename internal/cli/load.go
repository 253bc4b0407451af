package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgcopy/internal/config"
	"github.com/vvka-141/pgcopy/internal/db"
	"github.com/vvka-141/pgcopy/internal/logging"
	"github.com/vvka-141/pgcopy/internal/marker"
	"github.com/vvka-141/pgcopy/internal/metrics"
	"github.com/vvka-141/pgcopy/internal/schema"
	"github.com/vvka-141/pgcopy/internal/services"
	"github.com/vvka-141/pgcopy/internal/source"
	"github.com/vvka-141/pgcopy/internal/ui"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

var loadCmd = &cobra.Command{
	Use:   "load <input> --table <table>",
	Short: "Load rows from a file into a table, once per update id",
	Long: `Load reads newline-delimited rows from <input>, inserts them into the target
table in batches inside one transaction, and records the run in the marker
table under its update id.

The load command:
1. Skips the run if its update id is already recorded (unless --skip-if-complete=false)
2. Creates the table from --column definitions if it does not exist,
   or reflects it with --reflect
3. Inserts all rows in batches of --chunk-size within one transaction
4. Commits, then records the update id in the marker table

If anything fails before the commit, nothing is loaded and the run is not
recorded, so the same command can simply be retried.

Arguments:
  input    Local path, "-" for stdin, or file://, s3://, gs://, mem:// URL.
           Names ending in .gz or .zst are decompressed.

Update ids:
  Without --update-id, an id is derived from the table and input name, so
  loading the same input into the same table twice is a no-op.

Examples:
  # Create the table on first use
  pgcopy load ./events.tsv --table events \
    --column id:integer:"PRIMARY KEY" --column name:text -d warehouse

  # Load into an existing table from S3, one run per day
  pgcopy load s3://exports/events/2024-03-01.tsv.zst --table events --reflect \
    --update-id events-2024-03-01

  # CSV with explicit NULL marker
  pgcopy load data.csv --table events --reflect --separator , --null-value NULL`,
	Args:              RequireInput,
	RunE:              runLoad,
	ValidArgsFunction: cobra.NoFileCompletions,
}

type loadFlagValues struct {
	conn           connectionFlags
	table          string
	columns        []string
	reflect        bool
	chunkSize      int
	separator      string
	nullValues     []string
	markerTable    string
	updateID       string
	skipIfComplete bool
	timeout        time.Duration
	metricsFile    string
}

var loadFlags loadFlagValues

func init() {
	rootCmd.AddCommand(loadCmd)
	registerLoadFlags(loadCmd, &loadFlags)
}

func registerLoadFlags(cmd *cobra.Command, f *loadFlagValues) {
	registerConnectionFlags(cmd, &f.conn)

	cmd.Flags().StringVarP(&f.table, "table", "t", "",
		"Target table, optionally schema-qualified (required)")
	cmd.Flags().StringArrayVarP(&f.columns, "column", "c", nil,
		"Column definition name:type[:constraints], repeatable, in table order\n"+
			"Used only when the table does not exist. Defaults to tables.<table> in pgcopy.yaml\n"+
			"Example: --column id:integer:\"PRIMARY KEY\" --column name:varchar(64)")
	cmd.Flags().BoolVar(&f.reflect, "reflect", false,
		"Use the existing table definition; fail if the table does not exist")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", pgcopy.DefaultChunkSize,
		"Maximum rows per insert statement")
	cmd.Flags().StringVar(&f.separator, "separator", pgcopy.DefaultColumnSeparator,
		"Field separator; escapes such as \\t are interpreted (default tab)")
	cmd.Flags().StringArrayVar(&f.nullValues, "null-value", nil,
		"Field value inserted as NULL, repeatable (e.g. --null-value '\\N')")
	cmd.Flags().StringVar(&f.markerTable, "marker-table", pgcopy.DefaultMarkerTable,
		"Table recording completed runs")
	cmd.Flags().StringVar(&f.updateID, "update-id", "",
		"Unique id of this load (default: derived from table and input)")
	cmd.Flags().BoolVar(&f.skipIfComplete, "skip-if-complete", true,
		"Skip the load when the update id is already recorded")
	cmd.Flags().DurationVar(&f.timeout, "timeout", pgcopy.DefaultTimeout,
		"Catastrophic failure protection timeout for the whole run\n"+
			"The load is rolled back when it expires. Examples: 90s, 30m, 2h")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "",
		"Write Prometheus metrics for this run to a textfile (node_exporter format)")

	_ = cmd.RegisterFlagCompletionFunc("table", completeTables)
}

// loadPlan is everything runLoad needs, resolved from flags, environment and pgcopy.yaml.
type loadPlan struct {
	input      string
	identity   pgcopy.RunIdentity
	schema     pgcopy.TableSchema
	opts       pgcopy.LoadOptions
	connConfig *pgcopy.ConnectionConfig
	timeout    time.Duration
}

// buildLoadPlan merges flags over pgcopy.yaml over defaults.
// This function is extracted for testability.
func buildLoadPlan(cmd *cobra.Command, f *loadFlagValues, input string, projectCfg *config.ProjectConfig, verbose bool) (*loadPlan, error) {
	if f.table == "" {
		return nil, usageError(fmt.Errorf("--table is required"))
	}

	opts := projectCfg.LoadOptions()
	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		opts.ChunkSize = f.chunkSize
	}
	if flags.Changed("separator") {
		sep, err := unescapeSeparator(f.separator)
		if err != nil {
			return nil, &pgcopy.ConfigurationError{Table: f.table, Reason: err.Error()}
		}
		opts.ColumnSeparator = sep
	}
	if flags.Changed("null-value") {
		opts.NullValues = append([]string(nil), f.nullValues...)
	}
	if flags.Changed("marker-table") {
		opts.MarkerTable = f.markerTable
	}
	if flags.Changed("reflect") {
		opts.ReflectOnly = f.reflect
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var columns []pgcopy.ColumnSpec
	if len(f.columns) > 0 {
		for _, raw := range f.columns {
			spec, err := pgcopy.ParseColumnSpec(raw)
			if err != nil {
				return nil, &pgcopy.ConfigurationError{Table: f.table, Reason: "invalid --column", Err: err}
			}
			columns = append(columns, spec)
		}
	} else {
		columns = projectCfg.TableColumns(f.table)
	}

	updateID := f.updateID
	if updateID == "" {
		updateID = source.DeriveUpdateID(f.table, input, nil)
		if verbose {
			fmt.Fprintf(os.Stderr, "[VERBOSE] Derived update id %s\n", updateID)
		}
	}
	identity := pgcopy.RunIdentity{TargetTable: f.table, UpdateID: updateID}
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, f.timeout)
	if err != nil {
		return nil, err
	}

	connConfig, err := resolveConnectionFromFlags(f.conn, projectCfg, verbose)
	if err != nil {
		return nil, err
	}

	return &loadPlan{
		input:      input,
		identity:   identity,
		schema:     pgcopy.NewTableSchema(columns, opts.ReflectOnly),
		opts:       opts,
		connConfig: connConfig,
		timeout:    timeout,
	}, nil
}

// unescapeSeparator interprets Go escape sequences such as \t and \x1f.
func unescapeSeparator(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
	if err != nil {
		return "", fmt.Errorf("invalid separator %q: %v", s, err)
	}
	return unquoted, nil
}

func runLoad(cmd *cobra.Command, args []string) (err error) {
	verbose := getVerboseFlag(cmd)

	projectCfg, err := loadProjectConfig(getConfigDir(cmd))
	if err != nil {
		return err
	}

	plan, err := buildLoadPlan(cmd, &loadFlags, args[0], projectCfg, verbose)
	if err != nil {
		return err
	}

	logger := logging.NewConsoleLogger(verbose)
	var svcOpts []services.Option
	var m *metrics.Metrics
	if loadFlags.metricsFile != "" {
		m = metrics.New()
		svcOpts = append(svcOpts, services.WithObserver(m))
		defer func() {
			if writeErr := m.WriteTextfile(loadFlags.metricsFile); writeErr != nil {
				logger.Error("%v", writeErr)
			}
		}()
	}
	svc := services.NewCopyService(db.NewConnector, logger, svcOpts...)

	ctx, cancel := signalContext(plan.timeout, "load")
	defer cancel()

	session, err := svc.Open(ctx, plan.connConfig)
	if err != nil {
		return err
	}
	defer session.Close()

	styled := ui.Styled(os.Stderr)

	if loadFlags.skipIfComplete {
		conn := session.Conn()
		store := marker.NewStore(conn, schema.NewResolver(conn, logger), plan.opts.MarkerTable, logger)
		if marker.NewTarget(store, plan.identity).Exists(ctx) {
			logger.Info("Run %s is already complete, skipping", plan.identity)
			if m != nil {
				m.RunFinished(plan.identity.TargetTable, metrics.OutcomeSkipped, 0)
			}
			ui.RenderRunSummary(os.Stderr, &pgcopy.RunResult{Identity: plan.identity, Skipped: true}, styled)
			return nil
		}
	}

	task := source.BaseTask{Input: plan.input, Separator: plan.opts.ColumnSeparator}
	result, err := svc.Run(ctx, session.Conn(), plan.identity, plan.schema, task.Rows(ctx), plan.opts)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	ui.RenderRunSummary(os.Stderr, result, styled)
	return nil
}
