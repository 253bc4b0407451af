package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgcopy/internal/retry"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// tokenExpiryWarning is how close to expiry a freshly acquired token must be
// before a warning is printed. New pool connections made after expiry fail.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector implements the Connector interface for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
// The token is acquired from a TokenProvider and used as the PostgreSQL password.
type TokenBasedConnector struct {
	config        *pgcopy.ConnectionConfig
	tokenProvider TokenProvider
	retryExecutor *retry.Executor
	providerName  string
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error/warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(config *pgcopy.ConnectionConfig, tokenProvider TokenProvider, providerName string) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		retryExecutor: newConnectRetryExecutor(),
		providerName:  providerName,
	}
}

// Connect acquires a fresh token per attempt and opens the pool with it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}

		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
			fmt.Fprintf(os.Stderr, "Warning: %s token expires in %v\n", c.providerName, remaining.Round(time.Second))
		}

		configWithToken := *c.config
		configWithToken.Password = token

		pool, err = openPool(ctx, BuildConnectionString(&configWithToken), c.config, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pool, nil
}
