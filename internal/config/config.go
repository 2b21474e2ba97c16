// Package config loads the chatline server configuration.
//
// Configuration is a YAML file. ${VAR_NAME} references are replaced with
// environment variables before parsing, so secrets such as the database
// DSN or the reply backend token can stay out of the file. Duration
// fields are written as Go duration strings ("10s", "1m30s").
//
// Example:
//
//	server:
//	  http_addr: ":8100"
//	  cors_origins: ["http://localhost:5173"]
//	  shutdown_timeout: "10s"
//	database:
//	  driver: sqlite
//	  path: "chatline.db"
//	reply:
//	  backend: echo
//	logging:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	  path: /metrics
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Reply backends.
const (
	ReplyEcho = "echo"
	ReplyLLM  = "llm"
)

// Config represents the complete chatline configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Reply    ReplyConfig    `yaml:"reply"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and locates the store backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"` // sqlite file
	DSN    string `yaml:"dsn"`  // postgres or mysql connection string
}

// ReplyConfig selects the reply generator. The llm backend talks to an
// OpenAI-compatible endpoint.
type ReplyConfig struct {
	Backend string        `yaml:"backend"`
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given: SQLite in
// the working directory, echo replies, JSON logs and metrics enabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8100",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "chatline.db",
		},
		Reply: ReplyConfig{
			Backend: ReplyEcho,
			BaseURL: "http://localhost:11434/v1/",
			Model:   "llama3.1:8b",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads a configuration file from the given path on top of Default().
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with
// an empty string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverPostgres, DriverMySQL:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver %q is not one of memory, sqlite, postgres, mysql", c.Database.Driver)
	}

	switch c.Reply.Backend {
	case ReplyEcho:
	case ReplyLLM:
		if c.Reply.BaseURL == "" || c.Reply.Model == "" {
			return fmt.Errorf("reply.base_url and reply.model are required for the llm backend")
		}
		if c.Reply.Timeout <= 0 {
			return fmt.Errorf("reply.timeout must be positive")
		}
	default:
		return fmt.Errorf("reply.backend %q is not one of echo, llm", c.Reply.Backend)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is not one of json, console", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics.path is required when metrics are enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Reply.TimeoutRaw != "" {
		cfg.Reply.Timeout, err = time.ParseDuration(cfg.Reply.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing reply timeout %q: %w", cfg.Reply.TimeoutRaw, err)
		}
	}

	return nil
}
