package pgcopy_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

func TestRunIdentity_Validate(t *testing.T) {
	long := strings.Repeat("x", pgcopy.MarkerFieldMaxLength+1)

	tests := []struct {
		name     string
		identity pgcopy.RunIdentity
		wantErr  bool
	}{
		{"valid", pgcopy.RunIdentity{TargetTable: "events", UpdateID: "events-1"}, false},
		{"max length", pgcopy.RunIdentity{TargetTable: "events", UpdateID: long[:pgcopy.MarkerFieldMaxLength]}, false},
		{"multibyte update id", pgcopy.RunIdentity{TargetTable: "événements", UpdateID: strings.Repeat("é", 100)}, false},
		{"max length in runes", pgcopy.RunIdentity{TargetTable: strings.Repeat("表", pgcopy.MarkerFieldMaxLength), UpdateID: "u"}, false},
		{"too many runes", pgcopy.RunIdentity{TargetTable: "events", UpdateID: strings.Repeat("é", pgcopy.MarkerFieldMaxLength+1)}, true},
		{"missing update id", pgcopy.RunIdentity{TargetTable: "events"}, true},
		{"missing table", pgcopy.RunIdentity{UpdateID: "u"}, true},
		{"update id too long", pgcopy.RunIdentity{TargetTable: "events", UpdateID: long}, true},
		{"table too long", pgcopy.RunIdentity{TargetTable: long, UpdateID: "u"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.identity.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, pgcopy.ErrInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunIdentity_ValidateReportsAllProblems(t *testing.T) {
	err := pgcopy.RunIdentity{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update id is required")
	assert.Contains(t, err.Error(), "target table is required")
}

func TestParseColumnSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    pgcopy.ColumnSpec
		wantErr bool
	}{
		{"id:integer", pgcopy.ColumnSpec{Name: "id", Type: "integer"}, false},
		{"id:integer:PRIMARY KEY", pgcopy.ColumnSpec{Name: "id", Type: "integer", Constraints: "PRIMARY KEY"}, false},
		{"ts:timestamp:NOT NULL DEFAULT now()", pgcopy.ColumnSpec{Name: "ts", Type: "timestamp", Constraints: "NOT NULL DEFAULT now()"}, false},
		{"price:numeric(10,2)", pgcopy.ColumnSpec{Name: "price", Type: "numeric(10,2)"}, false},
		{" name : text ", pgcopy.ColumnSpec{Name: "name", Type: "text"}, false},
		{"untyped", pgcopy.ColumnSpec{Name: "untyped"}, false},
		{":integer", pgcopy.ColumnSpec{}, true},
		{"", pgcopy.ColumnSpec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := pgcopy.ParseColumnSpec(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, pgcopy.ErrInvalidColumns)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTableSchema_CopiesColumns(t *testing.T) {
	cols := []pgcopy.ColumnSpec{{Name: "id", Type: "integer"}}
	s := pgcopy.NewTableSchema(cols, false)

	cols[0].Name = "changed"
	assert.Equal(t, "id", s.Columns[0].Name)
	assert.False(t, s.ReflectOnly)
}

func TestColumn_ValueType(t *testing.T) {
	assert.Equal(t, "character varying", pgcopy.Column{DataType: "character varying(3)", CastType: "character varying"}.ValueType())
	assert.Equal(t, "integer", pgcopy.Column{DataType: "integer"}.ValueType())
}

func TestTableHandle(t *testing.T) {
	h := &pgcopy.TableHandle{
		Schema: "etl",
		Name:   "Events",
		Columns: []pgcopy.Column{
			{Name: "id", DataType: "integer", Position: 1},
			{Name: "label", DataType: "text", Position: 2},
		},
	}

	assert.Equal(t, `"etl"."Events"`, h.Identifier())
	assert.Equal(t, []string{"id", "label"}, h.ColumnNames())
	assert.True(t, h.HasColumn("label"))
	assert.False(t, h.HasColumn("Label"))

	unqualified := &pgcopy.TableHandle{Name: `we"ird`}
	assert.Equal(t, `"we""ird"`, unqualified.Identifier())
}

func TestRowsFromSlice(t *testing.T) {
	rows := []pgcopy.Record{{1, "a"}, {2, "b"}, {3, "c"}}

	var got []pgcopy.Record
	for r, err := range pgcopy.RowsFromSlice(rows) {
		require.NoError(t, err)
		got = append(got, r)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, rows[:2], got)
}

func TestLoadOptions_Validate(t *testing.T) {
	assert.NoError(t, pgcopy.DefaultLoadOptions().Validate())

	opts := pgcopy.LoadOptions{}
	err := opts.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, pgcopy.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "chunk size must be positive, got 0")
	assert.Contains(t, err.Error(), "column separator cannot be empty")
	assert.Contains(t, err.Error(), "marker table name cannot be empty")
}

func TestMarkerState_String(t *testing.T) {
	assert.Equal(t, "absent", pgcopy.MarkerAbsent.String())
	assert.Equal(t, "complete", pgcopy.MarkerPresent.String())
	assert.Equal(t, "unknown", pgcopy.MarkerUnknown.String())
	assert.Equal(t, "MarkerState(9)", pgcopy.MarkerState(9).String())
}
