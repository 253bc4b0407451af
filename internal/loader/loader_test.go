package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgcopy/internal/logging"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

func fiveRows() pgcopy.RowIterator {
	return pgcopy.RowsFromSlice([]pgcopy.Record{
		{1, "a"}, {2, "b"}, {3, "c"}, {4, "d"}, {5, "e"},
	})
}

func TestLoad_PartitionsIntoChunks(t *testing.T) {
	scope := &recordingScope{}
	var seen []BatchInfo
	l := New(logging.NewNullLogger(), WithOnBatch(func(b BatchInfo) { seen = append(seen, b) }))

	stats, err := l.Load(context.Background(), fiveRows(), testTable(), 2, scope)
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.Rows)
	assert.Equal(t, 3, stats.Batches)
	require.Len(t, scope.batches, 3)
	assert.Equal(t, 2, scope.rowsOf(0))
	assert.Equal(t, 2, scope.rowsOf(1))
	assert.Equal(t, 1, scope.rowsOf(2))

	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[0].Index)
	assert.Equal(t, 3, seen[2].Index)
	assert.Equal(t, 1, seen[2].Rows)
}

func TestLoad_PreservesOrder(t *testing.T) {
	scope := &recordingScope{}
	l := New(logging.NewNullLogger())

	_, err := l.Load(context.Background(), fiveRows(), testTable(), 2, scope)
	require.NoError(t, err)

	var ids, labels []string
	for _, batch := range scope.batches {
		for _, v := range batch[0] {
			ids = append(ids, v.String)
		}
		for _, v := range batch[1] {
			labels = append(labels, v.String)
		}
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, labels)
}

func TestLoad_ChunkSizeOne(t *testing.T) {
	scope := &recordingScope{}
	rows := pgcopy.RowsFromSlice([]pgcopy.Record{{1, "x"}, {2, "y"}})

	stats, err := New(logging.NewNullLogger()).Load(context.Background(), rows, testTable(), 1, scope)
	require.NoError(t, err)

	assert.Len(t, scope.statements, 2)
	assert.Equal(t, 2, stats.Batches)
}

func TestLoad_EmptyInput(t *testing.T) {
	scope := &recordingScope{}

	stats, err := New(logging.NewNullLogger()).Load(context.Background(), pgcopy.RowsFromSlice(nil), testTable(), 10, scope)
	require.NoError(t, err)

	assert.Empty(t, scope.statements)
	assert.Equal(t, Stats{}, stats)
}

func TestLoad_RowShapeMismatch(t *testing.T) {
	scope := &recordingScope{}
	rows := pgcopy.RowsFromSlice([]pgcopy.Record{{1, "a"}, {2, "b"}, {3}})

	stats, err := New(logging.NewNullLogger()).Load(context.Background(), rows, testTable(), 2, scope)

	var shapeErr *pgcopy.RowShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, int64(3), shapeErr.Row)
	assert.Equal(t, 1, shapeErr.Got)
	assert.Equal(t, 2, shapeErr.Expected)
	assert.ErrorIs(t, err, pgcopy.ErrRowShapeMismatch)
	assert.Equal(t, pgcopy.ExitRowShapeMismatch, pgcopy.ExitCodeForError(err))

	// The first full batch was already sent; the caller discards it by rolling back.
	assert.Equal(t, 1, stats.Batches)
}

func TestLoad_InsertErrorCarriesBatchIndex(t *testing.T) {
	backendErr := errors.New("value too long")
	scope := &recordingScope{failOn: 2, err: backendErr}

	_, err := New(logging.NewNullLogger()).Load(context.Background(), fiveRows(), testTable(), 2, scope)

	var insertErr *pgcopy.InsertError
	require.ErrorAs(t, err, &insertErr)
	assert.Equal(t, 2, insertErr.Batch)
	assert.Equal(t, 2, insertErr.Rows)
	assert.ErrorIs(t, err, backendErr)
	assert.ErrorIs(t, err, pgcopy.ErrInsertFailed)
	assert.Len(t, scope.statements, 2, "loading stops at the failed batch")
}

func TestLoad_ProducerError(t *testing.T) {
	producerErr := errors.New("read: broken pipe")
	rows := func(yield func(pgcopy.Record, error) bool) {
		if !yield(pgcopy.Record{1, "a"}, nil) {
			return
		}
		yield(nil, producerErr)
	}

	_, err := New(logging.NewNullLogger()).Load(context.Background(), rows, testTable(), 10, &recordingScope{})
	assert.ErrorIs(t, err, producerErr)
}

func TestLoad_StopsPullingAfterError(t *testing.T) {
	pulled := 0
	rows := func(yield func(pgcopy.Record, error) bool) {
		for i := range 100 {
			pulled++
			if !yield(pgcopy.Record{i}, nil) {
				return
			}
		}
	}

	_, err := New(logging.NewNullLogger()).Load(context.Background(), rows, testTable(), 10, &recordingScope{})
	require.Error(t, err)
	assert.Equal(t, 1, pulled)
}

func TestLoad_NullValues(t *testing.T) {
	scope := &recordingScope{}
	rows := pgcopy.RowsFromSlice([]pgcopy.Record{{1, "\\N"}, {2, nil}, {3, "keep"}})
	l := New(logging.NewNullLogger(), WithNullValues([]string{"\\N"}))

	_, err := l.Load(context.Background(), rows, testTable(), 10, scope)
	require.NoError(t, err)

	labels := scope.batches[0][1]
	assert.Equal(t, pgtype.Text{}, labels[0])
	assert.Equal(t, pgtype.Text{}, labels[1])
	assert.Equal(t, pgtype.Text{String: "keep", Valid: true}, labels[2])
}

func TestLoad_InvalidChunkSize(t *testing.T) {
	_, err := New(logging.NewNullLogger()).Load(context.Background(), fiveRows(), testTable(), 0, &recordingScope{})
	assert.ErrorIs(t, err, pgcopy.ErrInvalidConfig)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scope := &recordingScope{}

	_, err := New(logging.NewNullLogger()).Load(ctx, fiveRows(), testTable(), 2, scope)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, scope.statements)
}

func TestInsertStatement(t *testing.T) {
	got := insertStatement(testTable())
	want := `INSERT INTO "public"."items" ("id", "label") SELECT u."id"::integer, u."label"::text FROM unnest($1::text[], $2::text[]) AS u("id", "label")`
	assert.Equal(t, want, got)
}

func TestInsertStatement_CastsWithoutLengthLimit(t *testing.T) {
	table := &pgcopy.TableHandle{
		Schema: "public",
		Name:   "t",
		Columns: []pgcopy.Column{
			{Name: "code", DataType: "character varying(3)", CastType: "character varying", Position: 1},
			{Name: "grade", DataType: "character(2)", CastType: "bpchar", Position: 2},
			{Name: "flags", DataType: "bit(3)", CastType: `"bit"`, Position: 3},
			{Name: "price", DataType: "numeric(10,2)", CastType: "numeric", Position: 4},
		},
	}

	got := insertStatement(table)
	want := `INSERT INTO "public"."t" ("code", "grade", "flags", "price") SELECT u."code"::character varying, u."grade"::bpchar, u."flags"::"bit", u."price"::numeric FROM unnest($1::text[], $2::text[], $3::text[], $4::text[]) AS u("code", "grade", "flags", "price")`
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "(3)")
}

func TestTextValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)

	tests := []struct {
		name     string
		value    any
		dataType string
		want     string
		wantOK   bool
	}{
		{"nil", nil, "text", "", false},
		{"string", "abc", "text", "abc", true},
		{"int", 42, "integer", "42", true},
		{"int64", int64(-7), "bigint", "-7", true},
		{"uint8", uint8(255), "smallint", "255", true},
		{"float", 1.5, "double precision", "1.5", true},
		{"bool", true, "boolean", "true", true},
		{"time", ts, "timestamp with time zone", "2024-03-01T12:30:00.0000005Z", true},
		{"bytes as text", []byte("raw"), "text", "raw", true},
		{"bytes as bytea", []byte{0xde, 0xad}, "bytea", `\xdead`, true},
		{"nil bytes", []byte(nil), "bytea", "", false},
		{"nil string pointer", (*string)(nil), "text", "", false},
		{"duration", time.Second, "interval", "1 seconds", true},
		{"fallback", []int{1, 2}, "text", "[1 2]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := textValue(tt.value, tt.dataType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
