package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vvka-141/pgcopy/internal/config"
	"github.com/vvka-141/pgcopy/internal/db"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	authMethod     string
	azureTenantID  string
	azureClientID  string
	awsRegion      string
	googleInstance string
}

// connectionStringFromEnv returns PGCOPY_CONNECTION_STRING if set.
// DATABASE_URL is handled by the resolver, below PG* variables.
func connectionStringFromEnv() string {
	return os.Getenv("PGCOPY_CONNECTION_STRING")
}

// registerConnectionFlags adds the connection flags to cmd.
func registerConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	cmd.Flags().StringVar(&f.connection, "connection", "",
		"PostgreSQL connection string (URI or ADO.NET format).\n"+
			"Mutually exclusive with granular flags (--host, --port, --username, --sslmode).\n"+
			"Alternative: PGCOPY_CONNECTION_STRING or DATABASE_URL environment variable.\n"+
			"Example: postgresql://loader@localhost:5432/warehouse")

	// Granular connection flags (PostgreSQL standard)
	// Precedence: flag > environment variable > pgcopy.yaml > default
	cmd.Flags().StringVarP(&f.host, "host", "h", "",
		"PostgreSQL server host\n"+
			"Precedence: --host > $PGHOST > pgcopy.yaml > localhost")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0,
		"PostgreSQL server port\n"+
			"Precedence: --port > $PGPORT > pgcopy.yaml > 5432")
	cmd.Flags().StringVarP(&f.username, "username", "U", "",
		"PostgreSQL user (default: $PGUSER or current OS user)")
	cmd.Flags().StringVarP(&f.database, "database", "d", "",
		"Database name (overrides the database of a connection string)")
	cmd.Flags().StringVar(&f.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $PGSSLMODE)")

	// Cloud IAM authentication
	cmd.Flags().StringVar(&f.authMethod, "auth", "",
		"Authentication method: standard|aws|google|azure\n"+
			"(default: auth_method in pgcopy.yaml, else standard; azure is implied by --azure-tenant-id)")
	cmd.Flags().StringVar(&f.azureTenantID, "azure-tenant-id", "",
		"Azure AD tenant/directory ID (overrides $AZURE_TENANT_ID)")
	cmd.Flags().StringVar(&f.azureClientID, "azure-client-id", "",
		"Azure AD application/client ID (overrides $AZURE_CLIENT_ID)")
	cmd.Flags().StringVar(&f.awsRegion, "aws-region", "",
		"AWS region for RDS IAM tokens (overrides $AWS_REGION)")
	cmd.Flags().StringVar(&f.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")

	_ = cmd.RegisterFlagCompletionFunc("sslmode", completeSSLModes)
	_ = cmd.RegisterFlagCompletionFunc("auth", completeAuthMethods)
}

// resolveConnectionFromFlags resolves connection configuration from flags,
// environment and project config.
func resolveConnectionFromFlags(flags connectionFlags, projectCfg *config.ProjectConfig, verbose bool) (*pgcopy.ConnectionConfig, error) {
	connString := flags.connection
	if connString == "" {
		connString = connectionStringFromEnv()
	}

	granularFlags := &db.GranularConnFlags{
		Host:     flags.host,
		Port:     flags.port,
		Username: flags.username,
		Database: flags.database,
		SSLMode:  flags.sslMode,
	}
	cloudFlags := &db.CloudAuthFlags{
		AuthMethod:     flags.authMethod,
		AzureTenantID:  flags.azureTenantID,
		AzureClientID:  flags.azureClientID,
		AWSRegion:      flags.awsRegion,
		GoogleInstance: flags.googleInstance,
	}

	connConfig, err := db.ResolveConnectionParams(connString, granularFlags, cloudFlags, db.LoadFromEnvironment(), projectCfg)
	if err != nil {
		return nil, err
	}
	if connConfig.AppName == "" {
		connConfig.AppName = pgcopy.DefaultAppName
	}

	if verbose {
		logConnectionVerbose(connConfig)
	}
	return connConfig, nil
}

// logConnectionVerbose logs connection details when verbose mode is enabled.
func logConnectionVerbose(connConfig *pgcopy.ConnectionConfig) {
	fmt.Fprintf(os.Stderr, "[VERBOSE] Connection resolved:\n")
	fmt.Fprintf(os.Stderr, "  Host: %s\n", connConfig.Host)
	fmt.Fprintf(os.Stderr, "  Port: %d\n", connConfig.Port)
	fmt.Fprintf(os.Stderr, "  User: %s\n", connConfig.Username)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", connConfig.Database)
	fmt.Fprintf(os.Stderr, "  SSL Mode: %s\n", connConfig.SSLMode)
	fmt.Fprintf(os.Stderr, "  Auth Method: %s\n", connConfig.AuthMethod)
}
