package testinfra

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPostgresImage is used unless PGCOPY_TEST_IMAGE names another tag,
	// e.g. postgres:13-alpine to check unnest casts on older servers.
	DefaultPostgresImage = "postgres:17-alpine"
	ImageEnvVar          = "PGCOPY_TEST_IMAGE"

	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "pgcopy"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
	Image      string
}

// image returns the PostgreSQL image tag to start.
func image() string {
	if img := os.Getenv(ImageEnvVar); img != "" {
		return img
	}
	return DefaultPostgresImage
}

// StartSimplePostgres starts a throwaway, non-TLS PostgreSQL server tuned for
// bulk inserts: durability is switched off since the data never outlives the test.
// The caller owns the container and should Terminate it.
func StartSimplePostgres(ctx context.Context) (*PostgresContainer, error) {
	img := image()
	ctr, err := postgres.Run(ctx,
		img,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithCmd("postgres",
			"-c", "fsync=off",
			"-c", "synchronous_commit=off",
			"-c", "full_page_writes=off",
		),
		testcontainers.WithWaitStrategy(
			// The entrypoint restarts the server once after init, hence two occurrences.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", img, err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable", "application_name=pgcopy-test")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr, Image: img}, nil
}
