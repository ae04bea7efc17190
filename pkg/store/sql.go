package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

// SQLStore executes statements through database/sql. SQL Server, PostgreSQL and DuckDB are
// supported.
type SQLStore struct {
	log *slog.Logger
	cfg Config
	db  *sql.DB
	// credErr is set when the driver needs credentials the configuration does not carry. It is
	// reported by every call rather than at construction.
	credErr error
}

func NewSQLStore(cfg Config) (*SQLStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}
	if cfg.Driver == DriverClickHouse {
		return nil, fmt.Errorf("driver %s is not a database/sql driver", cfg.Driver)
	}

	s := &SQLStore{log: cfg.Logger, cfg: cfg}
	dsn, err := dataSourceName(cfg)
	if err != nil {
		s.credErr = err
		cfg.Logger.Warn("store: credentials not configured", "driver", cfg.Driver)
		return s, nil
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	// No idle pool: a released *sql.Conn is closed, never handed to the next request.
	db.SetMaxIdleConns(0)
	s.db = db
	return s, nil
}

func dataSourceName(cfg Config) (string, error) {
	switch cfg.Driver {
	case DriverDuckDB:
		return cfg.Path, nil
	case DriverSQLServer:
		if cfg.Username == "" || cfg.Password == "" {
			return "", ErrMissingCredentials
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     cfg.address(),
			RawQuery: url.Values{"database": {cfg.Database}}.Encode(),
		}
		return u.String(), nil
	case DriverPostgres:
		if cfg.Username == "" || cfg.Password == "" {
			return "", ErrMissingCredentials
		}
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.Username, cfg.Password),
			Host:   cfg.address(),
			Path:   "/" + cfg.Database,
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
}

func (s *SQLStore) conn(ctx context.Context) (*sql.Conn, error) {
	if s.credErr != nil {
		return nil, &ConnectionError{Driver: s.cfg.Driver, Err: s.credErr}
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Driver: s.cfg.Driver, Err: err}
	}
	return conn, nil
}

// Execute runs query on a connection of its own, closed before returning, and returns every row.
func (s *SQLStore) Execute(ctx context.Context, query string) (dataset.Result, error) {
	start := time.Now()
	result, err := s.execute(ctx, query)
	metrics.StoreQueryDuration.WithLabelValues(s.cfg.Driver, metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error("store: query failed", "driver", s.cfg.Driver, "duration", time.Since(start), "error", err)
		return dataset.Result{}, err
	}
	metrics.StoreRowsReturned.WithLabelValues(s.cfg.Driver).Observe(float64(len(result.Rows)))
	s.log.Debug("store: query executed", "driver", s.cfg.Driver, "duration", time.Since(start), "rows", len(result.Rows))
	return result, nil
}

func (s *SQLStore) execute(ctx context.Context, query string) (dataset.Result, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return dataset.Result{}, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return dataset.Result{}, &QueryError{Driver: s.cfg.Driver, Err: err}
	}
	defer rows.Close()

	result, err := scanSQLRows(rows)
	if err != nil {
		return dataset.Result{}, &QueryError{Driver: s.cfg.Driver, Err: err}
	}
	return result, nil
}

func scanSQLRows(rows *sql.Rows) (dataset.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return dataset.Result{}, fmt.Errorf("failed to get columns: %w", err)
	}
	kinds := make([]dataset.Kind, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			kinds[i] = dataset.KindForDatabaseType(ct.DatabaseTypeName())
		}
	}

	result := dataset.Result{Columns: columns, Kinds: kinds, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return dataset.Result{}, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return dataset.Result{}, fmt.Errorf("error iterating rows: %w", err)
	}

	result.InferKinds()
	return result, nil
}

// Tables lists the tables visible to the configured user, schema-qualified.
func (s *SQLStore) Tables(ctx context.Context) ([]string, error) {
	var query string
	switch s.cfg.Driver {
	case DriverSQLServer:
		query = `SELECT '[' + SCHEMA_NAME(schema_id) + '].[' + name + ']' FROM sys.tables ORDER BY 1`
	case DriverPostgres:
		query = `SELECT table_schema || '.' || table_name FROM information_schema.tables
			WHERE table_type = 'BASE TABLE' AND table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY 1`
	case DriverDuckDB:
		query = `SELECT schema_name || '.' || table_name FROM duckdb_tables() ORDER BY 1`
	}

	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Driver: s.cfg.Driver, Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &QueryError{Driver: s.cfg.Driver, Err: fmt.Errorf("failed to scan table row: %w", err)}
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Driver: s.cfg.Driver, Err: err}
	}
	return tables, nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
