package pgcopy

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	_, err := service.Run(ctx, conn, identity, schema, rows, opts)
//	if errors.Is(err, pgcopy.ErrMarkerAssertion) {
//	    // Data is committed but the run is not recorded as complete
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidColumns indicates column definitions are missing or lack a type
	// while table creation (not reflection) is required.
	ErrInvalidColumns = errors.New("column definitions missing or incomplete")

	// ErrSchema indicates the target table could not be created or reflected.
	ErrSchema = errors.New("schema resolution failed")

	// ErrTableNotFound indicates reflection was requested for a table that does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrRowShapeMismatch indicates a row's field count differs from the table's column count.
	ErrRowShapeMismatch = errors.New("row shape mismatch")

	// ErrInsertFailed indicates the backend rejected a batch insert.
	ErrInsertFailed = errors.New("insert failed")

	// ErrTransactionFailed indicates a transaction could not be opened or committed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrMarkerAssertion indicates the completion marker is absent right after it was written.
	ErrMarkerAssertion = errors.New("completion marker not recorded")

	// ErrMarkerUnknown indicates the completion state could not be read from the backend.
	ErrMarkerUnknown = errors.New("completion state unknown")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrApprovalDenied indicates the user declined a confirmation prompt.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrUsage indicates invalid command-line arguments or flags.
	ErrUsage = errors.New("usage error")
)

// ConfigurationError reports an invalid load configuration for a table.
type ConfigurationError struct {
	Table  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error for table %q: %s", e.Table, e.Reason)
}

// Unwrap returns ErrInvalidConfig plus the specific cause, if any.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidConfig}
	}
	return []error{ErrInvalidConfig, e.Err}
}

// SchemaError reports a failure to create or reflect a table.
type SchemaError struct {
	Table string
	Op    string // "reflect" or "create"
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s of table %q failed: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns ErrSchema plus the underlying cause.
func (e *SchemaError) Unwrap() []error {
	return []error{ErrSchema, e.Err}
}

// RowShapeError reports a row whose length differs from the table's column count.
// Row is 1-based in the order rows were produced.
type RowShapeError struct {
	Table    string
	Row      int64
	Got      int
	Expected int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("row %d for table %q has %d fields, table has %d columns", e.Row, e.Table, e.Got, e.Expected)
}

func (e *RowShapeError) Unwrap() error { return ErrRowShapeMismatch }

// InsertError reports a backend failure while inserting one batch.
// Batch is 1-based.
type InsertError struct {
	Table string
	Batch int
	Rows  int
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert of batch %d (%d rows) into %q failed: %v", e.Batch, e.Rows, e.Table, e.Err)
}

func (e *InsertError) Unwrap() []error {
	return []error{ErrInsertFailed, e.Err}
}

// TransactionError reports a failure to begin or commit the load transaction.
type TransactionError struct {
	Op  string // "begin" or "commit"
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	return []error{ErrTransactionFailed, e.Err}
}

// MarkerAssertionError reports that the completion marker for UpdateID was not
// observed after it was written. The run's data may already be committed.
type MarkerAssertionError struct {
	UpdateID string
	Err      error // backend error from the re-check, nil if the record was simply absent
}

func (e *MarkerAssertionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion marker for update %q could not be verified: %v", e.UpdateID, e.Err)
	}
	return fmt.Sprintf("completion marker for update %q is absent after touch", e.UpdateID)
}

func (e *MarkerAssertionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMarkerAssertion}
	}
	return []error{ErrMarkerAssertion, e.Err}
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Marker assertion is checked first: it may wrap backend errors of any class.
	switch {
	case errors.Is(err, ErrMarkerAssertion):
		return ExitMarkerAssertion
	case errors.Is(err, ErrMarkerUnknown):
		return ExitMarkerUnknown
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidColumns):
		return ExitConfigError
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrSchema):
		return ExitSchemaError
	case errors.Is(err, ErrRowShapeMismatch):
		return ExitRowShapeMismatch
	case errors.Is(err, ErrInsertFailed), errors.Is(err, ErrTransactionFailed):
		return ExitLoadFailed
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	}

	// Check for common connection error patterns
	errStr := err.Error()
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
