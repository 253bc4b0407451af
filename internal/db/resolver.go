package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/pgcopy/internal/config"
	"github.com/vvka-141/pgcopy/pkg/pgcopy"
)

// GranularConnFlags represents connection parameters from CLI flags.
// These follow PostgreSQL standard flag conventions (-h, -p, -U, -d).
//
// Password is not a flag. Use $PGPASSWORD, .pgpass or a connection string.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty returns true if no connection-related granular flags were provided.
// Database is excluded: it may override the database of a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// CloudAuthFlags selects and parameterizes cloud IAM authentication.
// Secrets are never flags; AZURE_CLIENT_SECRET comes from the environment.
type CloudAuthFlags struct {
	AuthMethod     string // "standard", "aws", "google", "azure"; empty means auto
	AzureTenantID  string // Overrides AZURE_TENANT_ID
	AzureClientID  string // Overrides AZURE_CLIENT_ID
	AWSRegion      string // Overrides AWS_REGION
	GoogleInstance string // Cloud SQL instance connection name
}

// EnvVars represents PostgreSQL standard environment variables plus the cloud
// SDK variables pgcopy honors.
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	DATABASE_URL string // Full connection string (Heroku/Rails convention)

	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
	AWS_REGION          string
}

// LoadFromEnvironment snapshots the relevant environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
	}
}

// hasPGServerVars reports whether any PG* variable that names a server or
// database is set. Those take precedence over DATABASE_URL.
func (e *EnvVars) hasPGServerVars() bool {
	return e.PGHOST != "" || e.PGPORT != "" || e.PGUSER != "" || e.PGDATABASE != ""
}

// ResolveConnectionParams resolves connection parameters with this precedence:
//
//  1. --connection flag, parsed as a URI or ADO.NET string
//  2. granular flags (-h, -p, -U, -d, --sslmode)
//  3. PG* environment variables
//  4. DATABASE_URL
//  5. pgcopy.yaml connection section
//  6. defaults (localhost:5432, sslmode=prefer, $USER)
//
// Supplying both --connection and granular flags is an error.
// Cloud authentication is applied afterwards, see applyCloudAuth.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	cloudFlags *CloudAuthFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*pgcopy.ConnectionConfig, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if cloudFlags == nil {
		cloudFlags = &CloudAuthFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U, --sslmode)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://user@localhost:5432/mydb\"\n"+
				"  2. Granular flags: -h localhost -p 5432 -U myuser -d mydb\n"+
				"  3. Environment variables: export PGHOST=localhost PGPORT=5432 PGUSER=myuser: %w",
			pgcopy.ErrInvalidConfig,
		)
	}

	var cfg *pgcopy.ConnectionConfig
	var err error

	switch {
	case connStringFlag != "":
		cfg, err = resolveFromConnectionString(connStringFlag, envVars)
	case granularFlags.IsEmpty() && !envVars.hasPGServerVars() && envVars.DATABASE_URL != "":
		cfg, err = resolveFromConnectionString(envVars.DATABASE_URL, envVars)
	default:
		cfg, err = resolveFromGranularParams(granularFlags, envVars, pc)
	}
	if err != nil {
		return nil, err
	}

	if granularFlags.Database != "" {
		cfg.Database = granularFlags.Database
	}
	applySSLFiles(cfg, pc)

	if err := applyCloudAuth(cfg, cloudFlags, envVars, pc); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveFromConnectionString parses connStr and fills sslmode from
// PGSSLMODE when the string leaves it unset, as libpq does.
func resolveFromConnectionString(connStr string, envVars *EnvVars) (*pgcopy.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w: %w", pgcopy.ErrInvalidConfig, err)
	}

	if cfg.SSLMode == "" {
		cfg.SSLMode = envVars.PGSSLMODE
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}
	if cfg.Password == "" {
		cfg.Password = envVars.PGPASSWORD
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveFromGranularParams builds a ConnectionConfig field by field:
// flag > environment > pgcopy.yaml > default.
func resolveFromGranularParams(
	flags *GranularConnFlags,
	envVars *EnvVars,
	pc config.ConnectionConfig,
) (*pgcopy.ConnectionConfig, error) {
	cfg := &pgcopy.ConnectionConfig{
		AuthMethod:       pgcopy.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, envVars.PGHOST, pc.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case envVars.PGPORT != "":
		port, err := strconv.Atoi(envVars.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", envVars.PGPORT, pgcopy.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = 5432
	}

	cfg.Username = firstNonEmpty(flags.Username, envVars.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = envVars.PGPASSWORD
	cfg.Database = firstNonEmpty(flags.Database, envVars.PGDATABASE, pc.Database, "postgres")
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, envVars.PGSSLMODE, pc.SSLMode, "prefer")

	return cfg, nil
}

// applySSLFiles copies certificate paths from pgcopy.yaml unless the
// connection string already set them.
func applySSLFiles(cfg *pgcopy.ConnectionConfig, pc config.ConnectionConfig) {
	if cfg.AdditionalParams == nil {
		cfg.AdditionalParams = make(map[string]string)
	}
	for key, value := range map[string]string{
		"sslcert":     pc.SSLCert,
		"sslkey":      pc.SSLKey,
		"sslrootcert": pc.SSLRootCert,
	} {
		if value == "" {
			continue
		}
		if _, set := cfg.AdditionalParams[key]; !set {
			cfg.AdditionalParams[key] = value
		}
	}
}

// applyCloudAuth chooses the auth method and attaches provider parameters.
// An explicit method (flag, then pgcopy.yaml) wins. Otherwise Azure is
// selected when tenant or client ids are present, matching the Azure SDK
// convention of configuring through the environment.
func applyCloudAuth(cfg *pgcopy.ConnectionConfig, flags *CloudAuthFlags, env *EnvVars, pc config.ConnectionConfig) error {
	tenantID := firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
	clientID := firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)

	method := firstNonEmpty(flags.AuthMethod, pc.AuthMethod)
	if method == "" && (tenantID != "" || clientID != "") {
		method = "azure"
	}

	authMethod, err := pgcopy.ParseAuthMethod(method)
	if err != nil {
		return err
	}
	cfg.AuthMethod = authMethod

	switch authMethod {
	case pgcopy.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case pgcopy.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, pc.AWSRegion)
		if cfg.AWSRegion == "" {
			return fmt.Errorf("AWS IAM auth requires a region (--aws-region or $AWS_REGION): %w", pgcopy.ErrInvalidConfig)
		}
	case pgcopy.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, pc.GoogleInstance)
	}
	return nil
}
