// Package store runs read-only statements against the backing tabular store and materializes
// their results.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
)

// Supported drivers.
const (
	DriverSQLServer  = "sqlserver"
	DriverPostgres   = "pgx"
	DriverDuckDB     = "duckdb"
	DriverClickHouse = "clickhouse"
)

// ErrMissingCredentials is wrapped by ConnectionError when the configuration carries no
// username or password for a driver that needs them.
var ErrMissingCredentials = errors.New("database credentials not found")

// Executor runs a statement and materializes the full result. Each call uses its own scoped
// connection, released on every exit path.
type Executor interface {
	Execute(ctx context.Context, sql string) (dataset.Result, error)
	Tables(ctx context.Context) ([]string, error)
	Close() error
}

// ConnectionError reports that the store could not be reached or credentials are missing.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports that the store rejected or failed to run a statement.
type QueryError struct {
	Driver string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: query failed: %v", e.Driver, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

type Config struct {
	Logger   *slog.Logger
	Driver   string
	Host     string
	Port     int
	Database string
	Path     string // DuckDB file; empty means in-memory
	Username string
	Password string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	switch cfg.Driver {
	case DriverSQLServer, DriverPostgres, DriverClickHouse:
		if cfg.Host == "" {
			return fmt.Errorf("host is required for driver %s", cfg.Driver)
		}
		if cfg.Database == "" {
			return fmt.Errorf("database is required for driver %s", cfg.Driver)
		}
		if cfg.Port < 0 || cfg.Port > 65535 {
			return fmt.Errorf("invalid port %d", cfg.Port)
		}
	case DriverDuckDB:
	case "":
		return fmt.Errorf("driver is required")
	default:
		return fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	return nil
}

// address returns host:port, using the driver's default port when none is set.
func (cfg *Config) address() string {
	port := cfg.Port
	if port == 0 {
		switch cfg.Driver {
		case DriverSQLServer:
			port = 1433
		case DriverPostgres:
			port = 5432
		case DriverClickHouse:
			port = 9000
		}
	}
	return cfg.Host + ":" + strconv.Itoa(port)
}

// New returns the Executor for cfg.Driver.
func New(cfg Config) (Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}
	if cfg.Driver == DriverClickHouse {
		return NewClickHouseStore(cfg)
	}
	return NewSQLStore(cfg)
}
