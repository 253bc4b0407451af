package pgcopy

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess          = 0  // Load completed, or skipped because already complete
	ExitGeneralError     = 1  // Unknown or unclassified error
	ExitUsageError       = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic            = 3  // Internal panic (unexpected crash)
	ExitConfigError      = 10 // Invalid configuration or column definitions
	ExitConnectionError  = 11 // Failed to connect to database
	ExitApprovalDenied   = 12 // User declined to mark a run complete
	ExitLoadFailed       = 13 // Row insertion or commit failed; nothing was loaded
	ExitSchemaError      = 15 // Target table could not be created or reflected
	ExitMarkerAssertion  = 16 // Data committed but completion marker not observed
	ExitMarkerUnknown    = 17 // Completion state could not be determined
	ExitRowShapeMismatch = 18 // A row's field count differs from the table's column count
)

const (
	// DefaultChunkSize is the maximum number of rows sent in one insert statement.
	DefaultChunkSize = 5000

	// DefaultColumnSeparator splits input lines into fields for the default row producer.
	DefaultColumnSeparator = "\t"

	// DefaultMarkerTable is the table recording completed runs.
	DefaultMarkerTable = "table_updates"

	// MarkerFieldMaxLength bounds update_id and target_table in the marker table.
	MarkerFieldMaxLength = 128

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of connection retry attempts.
	// Loads themselves are never retried.
	DefaultRetryMaxAttempts = 3

	// DefaultTimeout protects a run from hanging forever on network issues or locks.
	DefaultTimeout = 30 * time.Minute

	// DefaultAppName is reported to PostgreSQL as application_name.
	DefaultAppName = "pgcopy"
)
