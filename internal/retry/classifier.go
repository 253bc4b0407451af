package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQLErrorClassifier treats a failure to reach or be admitted by the
// server as transient. Authentication failures, unknown databases and every
// SQL-level error are fatal.
//
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
type PostgreSQLErrorClassifier struct{}

func NewPostgreSQLErrorClassifier() *PostgreSQLErrorClassifier {
	return &PostgreSQLErrorClassifier{}
}

// transientCodes are SQLSTATEs outside class 08 that still mean
// "try again shortly".
var transientCodes = map[string]bool{
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now (server starting up)
}

// transientMessages match errors from the dialer that do not carry a type.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"network is unreachable",
	"i/o timeout",
	"server closed the connection",
	"unexpected eof",
	"the database system is starting up",
}

// IsTransient reports whether connecting again may succeed.
func (c *PostgreSQLErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || transientCodes[pgErr.Code]
	}

	if isTransientNetError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isTransientNetError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH)
	}
	return false
}
