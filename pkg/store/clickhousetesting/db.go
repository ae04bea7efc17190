package clickhousetesting

import (
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/cenkalti/backoff/v5"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/malbeclabs/budgetquery/pkg/store"
)

type DBConfig struct {
	Database       string
	Username       string
	Password       string
	Port           string
	ContainerImage string
}

func (cfg *DBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.Port == "" {
		cfg.Port = "9000"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "clickhouse/clickhouse-server:latest"
	}
	return nil
}

// DB is a ClickHouse container and the store configuration that reaches it.
type DB struct {
	Config    store.Config
	container *tcch.ClickHouseContainer
}

// Seed runs statements on a writable connection. Stores open read-only sessions.
func (db *DB) Seed(t testing.TB, statements ...string) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{net.JoinHostPort(db.Config.Host, strconv.Itoa(db.Config.Port))},
		Auth: clickhouse.Auth{
			Database: db.Config.Database,
			Username: db.Config.Username,
			Password: db.Config.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer conn.Close()

	for _, stmt := range statements {
		require.NoError(t, conn.Exec(t.Context(), stmt), "failed to seed: %s", stmt)
	}
}

func NewDefaultDB(t testing.TB) *DB {
	return NewDB(t, nil)
}

func NewDB(t testing.TB, cfg *DBConfig) *DB {
	ctx := t.Context()

	if cfg == nil {
		cfg = &DBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("failed to validate DB config: %v", err)
	}

	// Retry container start up to 3 times for retryable errors
	var container *tcch.ClickHouseContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcch.Run(ctx,
			cfg.ContainerImage,
			tcch.WithDatabase(cfg.Database),
			tcch.WithUsername(cfg.Username),
			tcch.WithPassword(cfg.Password),
		)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			require.NoError(t, err)
		}
		break
	}

	if container == nil {
		t.Fatalf("failed to start ClickHouse container after retries: %v", lastErr)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, nat.Port(cfg.Port+"/tcp"))
	require.NoError(t, err)

	return &DB{
		Config: store.Config{
			Logger:   slog.Default(),
			Driver:   store.DriverClickHouse,
			Host:     host,
			Port:     mappedPort.Int(),
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		container: container,
	}
}

// NewStore opens a ClickHouseStore against the container. ClickHouse may need a moment after
// the container starts before it accepts queries, so the first ping is retried.
func (db *DB) NewStore(t testing.TB) *store.ClickHouseStore {
	s, err := store.NewClickHouseStore(db.Config)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("failed to close ClickHouse store: %v", err)
		}
	})

	_, err = backoff.Retry(t.Context(), func() ([]string, error) {
		tables, err := s.Tables(t.Context())
		if err != nil && !isRetryableConnectionErr(err) {
			return nil, backoff.Permanent(err)
		}
		return tables, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	require.NoError(t, err)
	return s
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "/containers/") && strings.Contains(s, "json") ||
		strings.Contains(s, "Get \"http://%2Fvar%2Frun%2Fdocker.sock")
}

func isRetryableConnectionErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "handshake") ||
		strings.Contains(s, "unexpected packet") ||
		strings.Contains(s, "packet") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "EOF") ||
		strings.Contains(s, "dial tcp")
}
