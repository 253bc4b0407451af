package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// typePattern accepts the type names people write in column definitions:
// one or more words (optionally schema-qualified), an optional precision
// list, optional trailing words, and array brackets. Examples:
// "integer", "varchar(128)", "numeric(10, 2)", "timestamp(3) with time zone", "text[]".
var typePattern = regexp.MustCompile(`(?i)^[a-z_][a-z0-9_.]*( [a-z_][a-z0-9_]*)*(\(\s*\d+(\s*,\s*\d+)?\s*\))?( [a-z_][a-z0-9_]*)*(\[\d*\])*$`)

// forbiddenConstraintTokens would let a constraint clause end the CREATE TABLE
// statement or hide the rest of it.
var forbiddenConstraintTokens = []string{";", "--", "/*", "*/"}

// QualifiedName is a table name split into schema and relation.
// An empty Schema is looked up through search_path and created in
// current_schema() when it is not found there.
type QualifiedName struct {
	Schema string
	Name   string
}

// ParseQualifiedName splits "schema.table" or "table".
func ParseQualifiedName(table string) (QualifiedName, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return QualifiedName{}, &pgcopy.ConfigurationError{Reason: "table name is empty"}
	}
	if strings.ContainsAny(table, "\"\x00") {
		return QualifiedName{}, &pgcopy.ConfigurationError{Table: table, Reason: "quoted table names are not supported"}
	}

	schemaName, name, qualified := strings.Cut(table, ".")
	if !qualified {
		return QualifiedName{Name: table}, nil
	}
	if schemaName == "" || name == "" || strings.Contains(name, ".") {
		return QualifiedName{}, &pgcopy.ConfigurationError{Table: table, Reason: "expected [schema.]table"}
	}
	return QualifiedName{Schema: schemaName, Name: name}, nil
}

// Identifier returns the sanitized SQL identifier.
func (q QualifiedName) Identifier() string {
	if q.Schema == "" {
		return pgx.Identifier{q.Name}.Sanitize()
	}
	return pgx.Identifier{q.Schema, q.Name}.Sanitize()
}

func (q QualifiedName) String() string {
	if q.Schema == "" {
		return q.Name
	}
	return q.Schema + "." + q.Name
}

// ValidateColumns rejects column lists that cannot be used to create a table:
// empty lists, unnamed or untyped columns, duplicate names, type names outside
// typePattern and constraint clauses containing statement separators or comments.
func ValidateColumns(table string, columns []pgcopy.ColumnSpec) error {
	if len(columns) == 0 {
		return &pgcopy.ConfigurationError{
			Table:  table,
			Reason: "no column definitions; supply columns or use reflect mode",
			Err:    pgcopy.ErrInvalidColumns,
		}
	}

	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return &pgcopy.ConfigurationError{Table: table, Reason: fmt.Sprintf("column %d has no name", i+1), Err: pgcopy.ErrInvalidColumns}
		}
		if col.Type == "" {
			return &pgcopy.ConfigurationError{Table: table, Reason: fmt.Sprintf("column %q has no type", col.Name), Err: pgcopy.ErrInvalidColumns}
		}
		if !typePattern.MatchString(strings.TrimSpace(col.Type)) {
			return &pgcopy.ConfigurationError{Table: table, Reason: fmt.Sprintf("column %q has unsupported type %q", col.Name, col.Type), Err: pgcopy.ErrInvalidColumns}
		}
		for _, tok := range forbiddenConstraintTokens {
			if strings.Contains(col.Constraints, tok) {
				return &pgcopy.ConfigurationError{Table: table, Reason: fmt.Sprintf("column %q constraints contain %q", col.Name, tok), Err: pgcopy.ErrInvalidColumns}
			}
		}
		if seen[col.Name] {
			return &pgcopy.ConfigurationError{Table: table, Reason: fmt.Sprintf("duplicate column %q", col.Name), Err: pgcopy.ErrInvalidColumns}
		}
		seen[col.Name] = true
	}
	return nil
}

// CreateTableSQL renders CREATE TABLE for validated columns.
func CreateTableSQL(name QualifiedName, columns []pgcopy.ColumnSpec) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		def := pgx.Identifier{col.Name}.Sanitize() + " " + strings.TrimSpace(col.Type)
		if c := strings.TrimSpace(col.Constraints); c != "" {
			def += " " + c
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name.Identifier(), strings.Join(defs, ", "))
}
