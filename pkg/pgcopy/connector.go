package pgcopy

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connector is a unified interface for establishing database connections.
// Different implementations handle various authentication methods
// (standard credentials, cloud IAM, etc.).
type Connector interface {
	// Connect establishes a connection pool to the database.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}

// ConnectorFactory builds a Connector for a parsed connection configuration.
type ConnectorFactory func(*ConnectionConfig) (Connector, error)

// ErrorClassifier decides whether a failed connection attempt is worth repeating.
// Only connecting is retried: a load that fails is rolled back and reported.
type ErrorClassifier interface {
	IsTransient(err error) bool
}

// BackoffStrategy spaces out connection attempts.
type BackoffStrategy interface {
	// NextDelay is the wait before retry number attempt (0-based).
	NextDelay(attempt int) time.Duration

	// MaxAttempts bounds retries: 0 disables them, -1 is unlimited.
	MaxAttempts() int
}
