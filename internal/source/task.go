package source

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// BaseTask supplies the defaults of pgcopy.CopyTask that have one: no column
// definitions, and rows read from Input split on Separator. Embed it and
// provide ConnectionString, Table and UpdateID.
type BaseTask struct {
	Input     string
	Separator string
	Opener    *Opener
}

// Columns returns nil. A task without definitions must be run with
// ReflectOnly set; otherwise resolution fails with a ConfigurationError even
// when the table exists.
func (b BaseTask) Columns() []pgcopy.ColumnSpec { return nil }

// Rows opens Input and yields its lines. Failure to open is reported as the
// first element of the sequence.
func (b BaseTask) Rows(ctx context.Context) pgcopy.RowIterator {
	return func(yield func(pgcopy.Record, error) bool) {
		opener := b.Opener
		if opener == nil {
			opener = NewOpener()
		}
		sep := b.Separator
		if sep == "" {
			sep = pgcopy.DefaultColumnSeparator
		}

		rc, err := opener.Open(ctx, b.Input)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		for rec, err := range Lines(rc, sep) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// FileTask is a CopyTask assembled from command-line and project settings.
type FileTask struct {
	BaseTask

	ConnString  string
	TableName   string
	ColumnSpecs []pgcopy.ColumnSpec
	ID          string
}

var _ pgcopy.CopyTask = (*FileTask)(nil)

func (t *FileTask) ConnectionString() string { return t.ConnString }

func (t *FileTask) Table() string { return t.TableName }

// Columns returns a copy of the configured definitions, or nil.
func (t *FileTask) Columns() []pgcopy.ColumnSpec {
	if len(t.ColumnSpecs) == 0 {
		return t.BaseTask.Columns()
	}
	return slices.Clone(t.ColumnSpecs)
}

// UpdateID returns the configured id, or one derived from the table and input.
func (t *FileTask) UpdateID() string {
	if t.ID != "" {
		return t.ID
	}
	return DeriveUpdateID(t.TableName, t.Input, nil)
}

// updateIDNamespace is the UUIDv5 namespace for derived update ids.
var updateIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/vvka-141/pgcopy/update-id"))

// DeriveUpdateID returns a deterministic id for loading input into table.
// extra adds caller-defined parameters, such as a partition date; key order
// does not matter.
func DeriveUpdateID(table, input string, extra map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "table=%s\x00input=%s", table, input)
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		fmt.Fprintf(&b, "\x00%s=%s", k, extra[k])
	}
	return uuid.NewSHA1(updateIDNamespace, []byte(b.String())).String()
}
