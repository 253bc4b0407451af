package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/pgcopy/pkg/pgcopy"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	SSLCert        string `yaml:"sslcert,omitempty"`
	SSLKey         string `yaml:"sslkey,omitempty"`
	SSLRootCert    string `yaml:"sslrootcert,omitempty"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

// LoadConfig holds load defaults. Zero values mean "not set"; CLI flags
// override whatever is set here.
type LoadConfig struct {
	ChunkSize       int      `yaml:"chunk_size,omitempty"`
	ColumnSeparator string   `yaml:"column_separator,omitempty"`
	NullValues      []string `yaml:"null_values,omitempty"`
	Reflect         bool     `yaml:"reflect,omitempty"`
	MarkerTable     string   `yaml:"marker_table,omitempty"`
	Timeout         string   `yaml:"timeout,omitempty"`
}

type ProjectConfig struct {
	Connection ConnectionConfig               `yaml:"connection"`
	Load       LoadConfig                     `yaml:"load"`
	Tables     map[string][]pgcopy.ColumnSpec `yaml:"tables"`
}

const ConfigFileName = "pgcopy.yaml"

func Load(sourcePath string) (*ProjectConfig, error) {
	configPath := filepath.Join(sourcePath, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	return &cfg, nil
}

// LoadOptions overlays the load section onto pgcopy.DefaultLoadOptions.
// A nil receiver yields the defaults.
func (c *ProjectConfig) LoadOptions() pgcopy.LoadOptions {
	opts := pgcopy.DefaultLoadOptions()
	if c == nil {
		return opts
	}

	l := c.Load
	if l.ChunkSize != 0 {
		opts.ChunkSize = l.ChunkSize
	}
	if l.ColumnSeparator != "" {
		opts.ColumnSeparator = l.ColumnSeparator
	}
	if len(l.NullValues) > 0 {
		opts.NullValues = append([]string(nil), l.NullValues...)
	}
	if l.MarkerTable != "" {
		opts.MarkerTable = l.MarkerTable
	}
	opts.ReflectOnly = l.Reflect
	return opts
}

// Timeout parses load.timeout. Returns 0 when unset.
func (c *ProjectConfig) Timeout() (time.Duration, error) {
	if c == nil || c.Load.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Load.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid load.timeout %q: %w", c.Load.Timeout, pgcopy.ErrInvalidConfig)
	}
	return d, nil
}

// TableColumns returns a copy of the column list configured for table, or nil.
func (c *ProjectConfig) TableColumns(table string) []pgcopy.ColumnSpec {
	if c == nil {
		return nil
	}
	cols, ok := c.Tables[table]
	if !ok {
		return nil
	}
	return append([]pgcopy.ColumnSpec(nil), cols...)
}
