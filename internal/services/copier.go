package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vvka-141/pgcopy/internal/db"
	"github.com/vvka-141/pgcopy/internal/loader"
	"github.com/vvka-141/pgcopy/internal/marker"
	"github.com/vvka-141/pgcopy/internal/metrics"
	"github.com/vvka-141/pgcopy/internal/schema"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

type tableResolver interface {
	Resolve(ctx context.Context, table string, columns []pgcopy.ColumnSpec, reflectOnly bool) (*pgcopy.TableHandle, error)
}

type completionStore interface {
	Touch(ctx context.Context, updateID, targetTable string) error
}

type rowLoader interface {
	Load(ctx context.Context, rows pgcopy.RowIterator, table *pgcopy.TableHandle, chunkSize int, scope pgcopy.Querier) (loader.Stats, error)
}

// components are the per-run collaborators. A fresh set is built for every
// run so that no state leaks between runs.
type components struct {
	resolver tableResolver
	store    completionStore
	loader   rowLoader
}

type componentFactory func(conn pgcopy.DBConnection, identity pgcopy.RunIdentity, opts pgcopy.LoadOptions) components

// Observer receives run and batch events, typically *metrics.Metrics.
type Observer interface {
	BatchInserted(table string, rows int)
	RunFinished(table, outcome string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) BatchInserted(string, int)                 {}
func (nopObserver) RunFinished(string, string, time.Duration) {}

// CopyService implements pgcopy.Runner.
//
// Thread-Safety: safe for concurrent runs. Each run builds its own resolver,
// marker store and loader; the only shared state is the database.
type CopyService struct {
	connectorFactory pgcopy.ConnectorFactory
	logger           pgcopy.Logger
	observer         Observer
	newComponents    componentFactory
}

var _ pgcopy.Runner = (*CopyService)(nil)

// Option configures a CopyService.
type Option func(*CopyService)

// WithObserver reports batches and run outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *CopyService) {
		if o != nil {
			s.observer = o
		}
	}
}

// NewCopyService creates a CopyService. It panics if connectorFactory or
// logger is nil.
func NewCopyService(connectorFactory pgcopy.ConnectorFactory, logger pgcopy.Logger, opts ...Option) *CopyService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	s := &CopyService{
		connectorFactory: connectorFactory,
		logger:           logger,
		observer:         nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.newComponents = s.defaultComponents
	return s
}

func (s *CopyService) defaultComponents(conn pgcopy.DBConnection, identity pgcopy.RunIdentity, opts pgcopy.LoadOptions) components {
	resolver := schema.NewResolver(conn, s.logger)
	return components{
		resolver: resolver,
		store:    marker.NewStore(conn, resolver, opts.MarkerTable, s.logger),
		loader: loader.New(s.logger,
			loader.WithNullValues(opts.NullValues),
			loader.WithOnBatch(func(b loader.BatchInfo) { s.observer.BatchInserted(identity.TargetTable, b.Rows) }),
		),
	}
}

// Run loads rows into identity.TargetTable and records identity.UpdateID as
// complete.
//
// All rows are inserted in one transaction. If resolution, any batch, or the
// commit fails, the transaction is rolled back, the marker is left untouched
// and the error is returned. After a successful commit the marker is written
// in its own transaction; if that fails the data stays committed and the
// error wraps pgcopy.ErrMarkerAssertion or the backend error.
//
// Run performs no retries and does not check whether the run already
// completed; that decision belongs to the caller.
func (s *CopyService) Run(ctx context.Context, conn pgcopy.DBConnection, identity pgcopy.RunIdentity, tableSchema pgcopy.TableSchema, rows pgcopy.RowIterator, opts pgcopy.LoadOptions) (*pgcopy.RunResult, error) {
	started := time.Now()

	result, err := s.run(ctx, conn, identity, tableSchema, rows, opts)

	duration := time.Since(started)
	outcome := metrics.OutcomeLoaded
	if err != nil {
		outcome = metrics.OutcomeFailed
	} else {
		result.Duration = duration
	}
	s.observer.RunFinished(identity.TargetTable, outcome, duration)
	return result, err
}

func (s *CopyService) run(ctx context.Context, conn pgcopy.DBConnection, identity pgcopy.RunIdentity, tableSchema pgcopy.TableSchema, rows pgcopy.RowIterator, opts pgcopy.LoadOptions) (*pgcopy.RunResult, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required: %w", pgcopy.ErrInvalidConfig)
	}
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := s.newComponents(conn, identity, opts)
	reflectOnly := tableSchema.ReflectOnly || opts.ReflectOnly

	s.logger.Verbose("Resolving table %s", identity.TargetTable)
	table, err := c.resolver.Resolve(ctx, identity.TargetTable, tableSchema.Columns, reflectOnly)
	if err != nil {
		return nil, err
	}
	if table.Created {
		s.logger.Info("Created table %s", table.Identifier())
	}

	stats, err := s.loadInTransaction(ctx, conn, c.loader, rows, table, opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	s.logger.Verbose("Committed %d rows in %d batches into %s", stats.Rows, stats.Batches, table.Identifier())

	if err := c.store.Touch(ctx, identity.UpdateID, identity.TargetTable); err != nil {
		s.logger.Error("Rows for %s are committed but the run is not recorded as complete: %v", identity, err)
		return nil, err
	}

	return &pgcopy.RunResult{
		Identity: identity,
		Table:    table,
		Rows:     stats.Rows,
		Batches:  stats.Batches,
	}, nil
}

func (s *CopyService) loadInTransaction(ctx context.Context, conn pgcopy.DBConnection, l rowLoader, rows pgcopy.RowIterator, table *pgcopy.TableHandle, chunkSize int) (stats loader.Stats, err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return stats, &pgcopy.TransactionError{Op: "begin", Err: err}
	}
	defer func() {
		// Rollback after Commit is a no-op.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && err != nil {
			s.logger.Verbose("Rollback after failed load: %v", rbErr)
		}
		if err != nil {
			s.logger.Error("Load into %s rolled back: %v", table.Identifier(), err)
		}
	}()

	stats, err = l.Load(ctx, rows, table, chunkSize, tx)
	if err != nil {
		return stats, err
	}

	if err = tx.Commit(ctx); err != nil {
		return stats, &pgcopy.TransactionError{Op: "commit", Err: err}
	}
	return stats, nil
}

// Copy connects using task.ConnectionString() and runs the task.
func (s *CopyService) Copy(ctx context.Context, task pgcopy.CopyTask, opts pgcopy.LoadOptions) (*pgcopy.RunResult, error) {
	connStr := task.ConnectionString()
	if connStr == "" {
		return nil, &pgcopy.ConfigurationError{Table: task.Table(), Reason: "connection string is required"}
	}

	connConfig, err := db.ParseConnectionString(connStr)
	if err != nil {
		return nil, &pgcopy.ConfigurationError{Table: task.Table(), Reason: "invalid connection string", Err: err}
	}
	if connConfig.AppName == "" {
		connConfig.AppName = pgcopy.DefaultAppName
	}

	session, err := s.Open(ctx, connConfig)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	identity := pgcopy.RunIdentity{TargetTable: task.Table(), UpdateID: task.UpdateID()}
	tableSchema := pgcopy.NewTableSchema(task.Columns(), opts.ReflectOnly)
	return s.Run(ctx, session.Conn(), identity, tableSchema, task.Rows(ctx), opts)
}
