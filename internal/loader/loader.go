// Package loader inserts a row stream into a table in fixed-size batches
// inside a caller-owned transaction.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// Stats counts what a Load call inserted.
type Stats struct {
	Rows    int64
	Batches int
}

// BatchInfo describes one inserted batch. Index is 1-based.
type BatchInfo struct {
	Table    string
	Index    int
	Rows     int
	Duration time.Duration
}

// Option configures a ChunkedLoader.
type Option func(*ChunkedLoader)

// WithNullValues makes fields whose text form equals one of values insert as NULL.
func WithNullValues(values []string) Option {
	return func(l *ChunkedLoader) {
		for _, v := range values {
			l.nullValues[v] = struct{}{}
		}
	}
}

// WithOnBatch registers a callback invoked after each batch is inserted.
func WithOnBatch(fn func(BatchInfo)) Option {
	return func(l *ChunkedLoader) {
		l.onBatch = fn
	}
}

// ChunkedLoader groups rows into batches and issues one INSERT per batch.
//
// Each batch is sent as one text[] parameter per column and cast server-side
// to the column's type, so batch size is independent of the bind parameter
// limit.
type ChunkedLoader struct {
	logger     pgcopy.Logger
	nullValues map[string]struct{}
	onBatch    func(BatchInfo)
}

// New panics if logger is nil.
func New(logger pgcopy.Logger, opts ...Option) *ChunkedLoader {
	if logger == nil {
		panic("logger cannot be nil")
	}
	l := &ChunkedLoader{
		logger:     logger,
		nullValues: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load consumes rows lazily and inserts them into table through scope in
// batches of at most chunkSize rows, preserving order. It never commits or
// rolls back scope; on error the caller must discard the transaction.
//
// A row whose length differs from the table's column count stops the load
// with a *pgcopy.RowShapeError. A rejected batch yields *pgcopy.InsertError.
func (l *ChunkedLoader) Load(ctx context.Context, rows pgcopy.RowIterator, table *pgcopy.TableHandle, chunkSize int, scope pgcopy.Querier) (Stats, error) {
	var stats Stats

	if chunkSize <= 0 {
		return stats, &pgcopy.ConfigurationError{Table: table.Name, Reason: fmt.Sprintf("chunk size must be positive, got %d", chunkSize)}
	}
	if len(table.Columns) == 0 {
		return stats, &pgcopy.SchemaError{Table: table.Name, Op: "reflect", Err: fmt.Errorf("table has no columns")}
	}

	stmt := insertStatement(table)
	batch := newColumnBatch(table.Columns, chunkSize)
	var rowNum int64

	flush := func() error {
		if batch.size == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		index := stats.Batches + 1
		started := time.Now()
		if _, err := scope.Exec(ctx, stmt, batch.args()...); err != nil {
			return &pgcopy.InsertError{Table: table.Identifier(), Batch: index, Rows: batch.size, Err: err}
		}

		info := BatchInfo{Table: table.Identifier(), Index: index, Rows: batch.size, Duration: time.Since(started)}
		stats.Batches = index
		stats.Rows += int64(batch.size)
		l.logger.Verbose("Inserted batch %d (%d rows) into %s in %v", index, batch.size, info.Table, info.Duration.Round(time.Millisecond))
		if l.onBatch != nil {
			l.onBatch(info)
		}

		batch.reset()
		return nil
	}

	for row, err := range rows {
		if err != nil {
			return stats, fmt.Errorf("failed to read row %d: %w", rowNum+1, err)
		}
		rowNum++

		if len(row) != len(table.Columns) {
			return stats, &pgcopy.RowShapeError{Table: table.Identifier(), Row: rowNum, Got: len(row), Expected: len(table.Columns)}
		}
		batch.add(row, l.toText)

		if batch.size == chunkSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (l *ChunkedLoader) toText(v any, col pgcopy.Column) pgtype.Text {
	s, ok := textValue(v, col.DataType)
	if !ok {
		return pgtype.Text{}
	}
	if _, isNull := l.nullValues[s]; isNull {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// insertStatement renders
//
//	INSERT INTO t ("a", "b") SELECT u."a"::integer, u."b"::character varying
//	FROM unnest($1::text[], $2::text[]) AS u("a", "b")
//
// Casts use the unmodified type so that over-length values fail on
// assignment with 22001 instead of being truncated by the cast.
func insertStatement(table *pgcopy.TableHandle) string {
	n := len(table.Columns)
	names := make([]string, n)
	casts := make([]string, n)
	params := make([]string, n)
	for i, col := range table.Columns {
		names[i] = pgx.Identifier{col.Name}.Sanitize()
		casts[i] = fmt.Sprintf("u.%s::%s", names[i], col.ValueType())
		params[i] = fmt.Sprintf("$%d::text[]", i+1)
	}
	cols := strings.Join(names, ", ")

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM unnest(%s) AS u(%s)",
		table.Identifier(), cols, strings.Join(casts, ", "), strings.Join(params, ", "), cols)
}

// columnBatch holds one batch in column-major order.
type columnBatch struct {
	columns []pgcopy.Column
	values  [][]pgtype.Text
	size    int
}

func newColumnBatch(columns []pgcopy.Column, capacity int) *columnBatch {
	b := &columnBatch{columns: columns, values: make([][]pgtype.Text, len(columns))}
	for i := range b.values {
		b.values[i] = make([]pgtype.Text, 0, min(capacity, 1024))
	}
	return b
}

func (b *columnBatch) add(row pgcopy.Record, convert func(any, pgcopy.Column) pgtype.Text) {
	for i, v := range row {
		b.values[i] = append(b.values[i], convert(v, b.columns[i]))
	}
	b.size++
}

func (b *columnBatch) args() []any {
	args := make([]any, len(b.values))
	for i, col := range b.values {
		args[i] = col
	}
	return args
}

func (b *columnBatch) reset() {
	for i := range b.values {
		b.values[i] = b.values[i][:0]
	}
	b.size = 0
}
