package pgcopy

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
)

// RunIdentity names one logical load. UpdateID is the primary key of
// completion state; TargetTable is recorded alongside it.
type RunIdentity struct {
	TargetTable string
	UpdateID    string
}

// Validate checks that both fields are set and fit the marker table columns.
func (r RunIdentity) Validate() error {
	var errs []error

	if r.UpdateID == "" {
		errs = append(errs, fmt.Errorf("update id is required: %w", ErrInvalidConfig))
	} else if utf8.RuneCountInString(r.UpdateID) > MarkerFieldMaxLength {
		errs = append(errs, fmt.Errorf("update id exceeds %d characters: %w", MarkerFieldMaxLength, ErrInvalidConfig))
	}

	if r.TargetTable == "" {
		errs = append(errs, fmt.Errorf("target table is required: %w", ErrInvalidConfig))
	} else if utf8.RuneCountInString(r.TargetTable) > MarkerFieldMaxLength {
		errs = append(errs, fmt.Errorf("target table exceeds %d characters: %w", MarkerFieldMaxLength, ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// String returns "table/update_id" for log messages.
func (r RunIdentity) String() string {
	return r.TargetTable + "/" + r.UpdateID
}

// MarkerRecord is one row of the marker table.
type MarkerRecord struct {
	UpdateID    string
	TargetTable string
	InsertedAt  time.Time
}

// MarkerState is the outcome of a completion check.
type MarkerState int

const (
	MarkerAbsent  MarkerState = iota // No record: the run has not completed
	MarkerPresent                    // Record found: the run has completed
	MarkerUnknown                    // The backend could not be queried
)

func (s MarkerState) String() string {
	switch s {
	case MarkerAbsent:
		return "absent"
	case MarkerPresent:
		return "complete"
	case MarkerUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("MarkerState(%d)", int(s))
	}
}

// ColumnSpec describes one column used to create a table.
// Type is a PostgreSQL type name such as "integer" or "varchar(128)".
// Constraints is optional, e.g. "PRIMARY KEY" or "NOT NULL DEFAULT now()".
type ColumnSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Constraints string `yaml:"constraints,omitempty"`
}

// ParseColumnSpec parses "name:type[:constraints]".
// A missing type is kept empty so the resolver can reject it.
func ParseColumnSpec(s string) (ColumnSpec, error) {
	parts := strings.SplitN(s, ":", 3)
	spec := ColumnSpec{Name: strings.TrimSpace(parts[0])}
	if spec.Name == "" {
		return ColumnSpec{}, fmt.Errorf("column %q has no name: %w", s, ErrInvalidColumns)
	}
	if len(parts) > 1 {
		spec.Type = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		spec.Constraints = strings.TrimSpace(parts[2])
	}
	return spec, nil
}

// TableSchema is either an explicit column list used to create the table, or
// ReflectOnly, meaning the table is owned elsewhere and is discovered from the
// catalog.
type TableSchema struct {
	Columns     []ColumnSpec
	ReflectOnly bool
}

// NewTableSchema returns a schema holding its own copy of columns, so that
// runs never share a mutable column list.
func NewTableSchema(columns []ColumnSpec, reflectOnly bool) TableSchema {
	cols := make([]ColumnSpec, len(columns))
	copy(cols, columns)
	return TableSchema{Columns: cols, ReflectOnly: reflectOnly}
}

// Column is a column discovered from, or created in, the catalog.
type Column struct {
	Name     string
	DataType string // format_type() output, e.g. "character varying(128)"
	CastType string // DataType without its length or precision, e.g. "character varying"
	Position int    // 1-based attnum order
}

// TableHandle is a resolved table with its columns in declared order.
type TableHandle struct {
	Schema  string
	Name    string
	Columns []Column
	Created bool // true when this resolution created the table
}

// ValueType is the type row values are cast to before assignment into the
// column. It falls back to DataType when no unmodified type is known.
func (c Column) ValueType() string {
	if c.CastType != "" {
		return c.CastType
	}
	return c.DataType
}

// Identifier returns the sanitized, schema-qualified table name for SQL text.
func (t *TableHandle) Identifier() string {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}.Sanitize()
	}
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

// ColumnNames returns column names in declared order.
func (t *TableHandle) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether a column with this name exists.
func (t *TableHandle) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Record is one row of positional field values. A nil value is SQL NULL.
type Record []any

// RowIterator is a lazy, possibly unbounded sequence of rows. A non-nil error
// ends the sequence.
type RowIterator = iter.Seq2[Record, error]

// RowsFromSlice adapts an in-memory slice to a RowIterator.
func RowsFromSlice(rows []Record) RowIterator {
	return func(yield func(Record, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// LoadOptions are the recognized load settings.
type LoadOptions struct {
	// ChunkSize is the maximum number of rows per insert statement.
	ChunkSize int

	// ColumnSeparator splits input lines; used only by the default row producer.
	ColumnSeparator string

	// NullValues are field values inserted as SQL NULL.
	NullValues []string

	// ReflectOnly binds to an existing table instead of creating one.
	ReflectOnly bool

	// MarkerTable names the completion marker table.
	MarkerTable string
}

// DefaultLoadOptions returns the documented defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		ChunkSize:       DefaultChunkSize,
		ColumnSeparator: DefaultColumnSeparator,
		MarkerTable:     DefaultMarkerTable,
	}
}

// Validate checks option values. It returns a multi-error if multiple
// validation failures occur.
func (o LoadOptions) Validate() error {
	var errs []error

	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d: %w", o.ChunkSize, ErrInvalidConfig))
	}
	if o.ColumnSeparator == "" {
		errs = append(errs, fmt.Errorf("column separator cannot be empty: %w", ErrInvalidConfig))
	}
	if o.MarkerTable == "" {
		errs = append(errs, fmt.Errorf("marker table name cannot be empty: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// RunResult summarizes a completed run.
type RunResult struct {
	Identity RunIdentity
	Table    *TableHandle
	Rows     int64
	Batches  int
	Duration time.Duration
	Skipped  bool // true when the run was already complete and nothing was loaded
}
