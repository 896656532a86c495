// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverNone     = "none"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Audit   AuditConfig
	Report  ReportConfig
	Runs    RunsConfig
	Store   StoreConfig
	Watch   WatchConfig
	Server  ServerConfig
	Logging LoggingConfig
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Path is the append-only audit file (default: tlog.txt)
	Path string `env:"AUDIT_LOG_PATH" default:"tlog.txt"`
}

// ReportConfig holds console reporting settings.
type ReportConfig struct {
	// ShowRows is the number of rows rendered per table (default: 20)
	ShowRows int `env:"SHOW_ROWS" default:"20"`

	// SalaryThreshold is the SALARIO lower bound of the batch report (default: 3000)
	SalaryThreshold float64 `env:"SALARY_THRESHOLD" default:"3000"`
}

// RunsConfig bounds run processing.
type RunsConfig struct {
	// Manifest is an optional YAML file listing the runs of a batch
	Manifest string `env:"RUN_MANIFEST"`

	// MaxConcurrent is the maximum number of runs classified at once (default: 4)
	MaxConcurrent int `env:"RUNS_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"RUNS_MAX_WAIT_TIME" default:"30s"`

	// MaxFileSize is the largest accepted upload body in bytes (default: 100MB)
	MaxFileSize int64 `env:"RUNS_MAX_FILE_SIZE" default:"104857600"`

	// Timeout is the maximum duration for processing one run (default: 10m)
	Timeout time.Duration `env:"RUNS_TIMEOUT" default:"10m"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver selects the sink: none, postgres, sqlite or mysql (default: none)
	Driver string `env:"STORE_DRIVER" default:"none"`

	// URL is the PostgreSQL connection string (required for postgres)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MySQLDSN is the go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/db (required for mysql)
	MySQLDSN string `env:"MYSQL_DSN"`

	// SQLitePath is the database file for the sqlite driver (default: dipendenti.db)
	SQLitePath string `env:"SQLITE_PATH" default:"dipendenti.db"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// BatchSize is the number of rows per insert batch (default: 1000)
	BatchSize int `env:"STORE_BATCH_SIZE" default:"1000"`
}

// WatchConfig holds drop-folder ingestion settings.
type WatchConfig struct {
	// Dir is the folder watched for new CSV files
	Dir string `env:"WATCH_DIR"`

	// Pattern is the file name glob a dropped file must match (default: *.csv)
	Pattern string `env:"WATCH_PATTERN" default:"*.csv"`

	// Settle is how long a file must stay unchanged before it is processed (default: 1s)
	Settle time.Duration `env:"WATCH_SETTLE" default:"1s"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
