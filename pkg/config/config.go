package config

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap/zapcore"
)

// DefaultFileName is the configuration file loaded when none is given
const DefaultFileName = "default_config.yaml"

// Warehouse kinds
const (
	WarehouseBigQuery = "bigquery"
	WarehouseSQL      = "sql"
)

// Remote providers
const (
	RemoteGCS = "gcs"
	RemoteS3  = "s3"
)

var (
	// ErrUnknownSetting is returned by Lookup for keys absent from the configuration
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrInvalidConfig is returned by Validate
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Configs is the run configuration. Recognized options are decoded into the
// typed sections; every top-level key of the source mapping, recognized or
// not, stays reachable through Get and Lookup.
type Configs struct {
	// UseWarehouse selects the warehouse instead of the local archive
	UseWarehouse bool `yaml:"use_warehouse" json:"use_warehouse" mapstructure:"use_warehouse"`

	Data          DataConfig          `yaml:"data" json:"data" mapstructure:"data"`
	Warehouse     WarehouseConfig     `yaml:"warehouse" json:"warehouse" mapstructure:"warehouse"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Remote        RemoteConfig        `yaml:"remote" json:"remote" mapstructure:"remote"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`

	settings map[string]any
	source   string
}

// DataConfig names the local datasets.
type DataConfig struct {
	// CaudalFile is the raw archive under data/raw
	CaudalFile string `yaml:"caudal_file" json:"caudal_file" mapstructure:"caudal_file"`
}

// WarehouseConfig selects and configures the remote warehouse.
type WarehouseConfig struct {
	// Kind is bigquery or sql
	Kind string `yaml:"kind" json:"kind" mapstructure:"kind"`
	// ProjectID is the billing project; empty means discover from credentials
	ProjectID string `yaml:"project_id" json:"project_id" mapstructure:"project_id"`
	// Query is the statement fetching the caudal dataset
	Query string `yaml:"query" json:"query" mapstructure:"query"`
	// Driver is the database/sql driver name for the sql kind
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`
	// DSN is the data source name for the sql kind
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	// CredentialsFile is a service account key file
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
}

// LoggingConfig controls the log sinks.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level" mapstructure:"level"`
	File       string `yaml:"file" json:"file" mapstructure:"file"`
	RunFile    string `yaml:"run_file" json:"run_file" mapstructure:"run_file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" mapstructure:"max_backups"`
}

// RemoteConfig locates the raw archive in object storage.
type RemoteConfig struct {
	Provider        string `yaml:"provider" json:"provider" mapstructure:"provider"`
	Bucket          string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" json:"prefix" mapstructure:"prefix"`
	Region          string `yaml:"region" json:"region" mapstructure:"region"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file" mapstructure:"credentials_file"`
}

// ObservabilityConfig enables the run metrics and trace files. Empty paths
// disable them.
type ObservabilityConfig struct {
	MetricsFile string `yaml:"metrics_file" json:"metrics_file" mapstructure:"metrics_file"`
	TraceFile   string `yaml:"trace_file" json:"trace_file" mapstructure:"trace_file"`
}

// Default returns the configuration used when a source sets nothing.
func Default() *Configs {
	c := &Configs{
		UseWarehouse: false,
		Data: DataConfig{
			CaudalFile: "caudal_extra.csv.zip",
		},
		Warehouse: WarehouseConfig{
			Kind: WarehouseBigQuery,
		},
		Logging: LoggingConfig{
			Level:      "debug",
			File:       "logs.log",
			RunFile:    "logs_run.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
	c.settings = c.toMap()
	return c
}

// Validate checks option values against their allowed sets.
func (c *Configs) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %w", ErrInvalidConfig, err)
	}
	if !slices.Contains([]string{WarehouseBigQuery, WarehouseSQL}, c.Warehouse.Kind) {
		return fmt.Errorf("%w: warehouse.kind %q must be %s or %s", ErrInvalidConfig, c.Warehouse.Kind, WarehouseBigQuery, WarehouseSQL)
	}
	if c.Warehouse.Kind == WarehouseSQL && c.Warehouse.Driver == "" {
		return fmt.Errorf("%w: warehouse.driver is required for the sql warehouse", ErrInvalidConfig)
	}
	if c.Remote.Provider != "" && !slices.Contains([]string{RemoteGCS, RemoteS3}, c.Remote.Provider) {
		return fmt.Errorf("%w: remote.provider %q must be %s or %s", ErrInvalidConfig, c.Remote.Provider, RemoteGCS, RemoteS3)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return fmt.Errorf("%w: logging rotation limits cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Get returns the value of a top-level setting.
func (c *Configs) Get(name string) (any, bool) {
	v, ok := c.settings[name]
	return v, ok
}

// Lookup is Get with an error naming the missing key.
func (c *Configs) Lookup(name string) (any, error) {
	v, ok := c.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	return v, nil
}

// Keys returns the names of every top-level setting.
func (c *Configs) Keys() []string {
	keys := make([]string, 0, len(c.settings))
	for k := range c.settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c *Configs) toMap() map[string]any {
	return map[string]any{
		"use_warehouse": c.UseWarehouse,
		"data": map[string]any{
			"caudal_file": c.Data.CaudalFile,
		},
		"warehouse": map[string]any{
			"kind":             c.Warehouse.Kind,
			"project_id":       c.Warehouse.ProjectID,
			"query":            c.Warehouse.Query,
			"driver":           c.Warehouse.Driver,
			"dsn":              c.Warehouse.DSN,
			"credentials_file": c.Warehouse.CredentialsFile,
		},
		"logging": map[string]any{
			"level":       c.Logging.Level,
			"file":        c.Logging.File,
			"run_file":    c.Logging.RunFile,
			"max_size_mb": c.Logging.MaxSizeMB,
			"max_backups": c.Logging.MaxBackups,
		},
		"remote": map[string]any{
			"provider":         c.Remote.Provider,
			"bucket":           c.Remote.Bucket,
			"prefix":           c.Remote.Prefix,
			"region":           c.Remote.Region,
			"credentials_file": c.Remote.CredentialsFile,
		},
		"observability": map[string]any{
			"metrics_file": c.Observability.MetricsFile,
			"trace_file":   c.Observability.TraceFile,
		},
	}
}
