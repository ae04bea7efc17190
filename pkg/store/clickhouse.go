package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

// ClickHouseStore executes statements over the native ClickHouse protocol. Every call opens its
// own client and closes it before returning.
type ClickHouseStore struct {
	log     *slog.Logger
	cfg     Config
	options *clickhouse.Options
	credErr error
}

func NewClickHouseStore(cfg Config) (*ClickHouseStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}
	s := &ClickHouseStore{log: cfg.Logger, cfg: cfg}
	if cfg.Username == "" {
		s.credErr = ErrMissingCredentials
		cfg.Logger.Warn("store: credentials not configured", "driver", cfg.Driver)
		return s, nil
	}

	s.options = &clickhouse.Options{
		Addr: []string{cfg.address()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
			"readonly":           1,
		},
		DialTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	cfg.Logger.Info("store: ClickHouse client initialized", "addr", cfg.address(), "database", cfg.Database)
	return s, nil
}

// open returns a client scoped to one call. The caller must close it.
func (s *ClickHouseStore) open() (driver.Conn, error) {
	if s.credErr != nil {
		return nil, &ConnectionError{Driver: s.cfg.Driver, Err: s.credErr}
	}
	conn, err := clickhouse.Open(s.options)
	if err != nil {
		return nil, &ConnectionError{Driver: s.cfg.Driver, Err: err}
	}
	return conn, nil
}

// classify separates errors raised by the server for a statement from transport failures.
func (s *ClickHouseStore) classify(err error) error {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		return &QueryError{Driver: s.cfg.Driver, Err: err}
	}
	return &ConnectionError{Driver: s.cfg.Driver, Err: err}
}

// Execute runs query and returns every row.
func (s *ClickHouseStore) Execute(ctx context.Context, query string) (dataset.Result, error) {
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

func (s *ClickHouseStore) execute(ctx context.Context, query string) (dataset.Result, error) {
	conn, err := s.open()
	if err != nil {
		return dataset.Result{}, err
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return dataset.Result{}, &ConnectionError{Driver: s.cfg.Driver, Err: err}
	}

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return dataset.Result{}, s.classify(err)
	}
	defer rows.Close()

	result, err := scanClickHouseRows(rows)
	if err != nil {
		return dataset.Result{}, s.classify(err)
	}
	return result, nil
}

func scanClickHouseRows(rows driver.Rows) (dataset.Result, error) {
	types := rows.ColumnTypes()
	columns := rows.Columns()
	kinds := make([]dataset.Kind, len(columns))
	for i, ct := range types {
		kinds[i] = dataset.KindForDatabaseType(ct.DatabaseTypeName())
	}

	result := dataset.Result{Columns: columns, Kinds: kinds, Rows: [][]any{}}
	for rows.Next() {
		// The native protocol scans into typed destinations only.
		dest := make([]any, len(types))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return dataset.Result{}, fmt.Errorf("failed to scan row: %w", err)
		}
		values := make([]any, len(dest))
		for i, d := range dest {
			values[i] = derefValue(reflect.ValueOf(d))
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return dataset.Result{}, fmt.Errorf("error iterating rows: %w", err)
	}

	result.InferKinds()
	return result, nil
}

// derefValue follows pointers down to the scanned value; a nil pointer (Nullable NULL) yields nil.
func derefValue(v reflect.Value) any {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// Tables lists the tables of the configured database.
func (s *ClickHouseStore) Tables(ctx context.Context) ([]string, error) {
	conn, err := s.open()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.Query(ctx, "SELECT database || '.' || name FROM system.tables WHERE database = currentDatabase() ORDER BY name")
	if err != nil {
		return nil, s.classify(err)
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
		return nil, s.classify(err)
	}
	return tables, nil
}

// Close is a no-op; no connection outlives the call that opened it.
func (s *ClickHouseStore) Close() error {
	return nil
}
