package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgcopy/internal/db"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// Session is an open connection pool and the DBConnection view of it.
// Close releases the pool; a Session must not be used afterwards.
type Session struct {
	pool *pgxpool.Pool
	conn pgcopy.DBConnection
}

// Conn returns the connection used by runs and marker queries.
func (s *Session) Conn() pgcopy.DBConnection {
	return s.conn
}

// Close releases the pool.
func (s *Session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Open connects to the database described by connConfig through the
// service's connector factory.
func (s *CopyService) Open(ctx context.Context, connConfig *pgcopy.ConnectionConfig) (*Session, error) {
	connector, err := s.connectorFactory(connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", connConfig.Database, err)
	}

	return &Session{pool: pool, conn: db.NewPoolAdapter(pool)}, nil
}
