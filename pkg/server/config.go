package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/malbeclabs/budgetquery/pkg/feedback"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

const (
	defaultReadHeaderTimeout = 30 * time.Second
	defaultShutdownTimeout   = 30 * time.Second
	defaultDownloadTTL       = 10 * time.Minute
)

// TableLister lists the tables of the backing store.
type TableLister interface {
	Tables(ctx context.Context) ([]string, error)
}

type Config struct {
	Logger            *slog.Logger
	Listener          net.Listener // Required by Run only
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Version           string

	Pipeline *pipeline.Pipeline
	Tables   TableLister   // Optional; enables the list_tables tool
	Feedback *feedback.Log // Optional; /api/feedback answers 503 without it

	DownloadTTL    time.Duration
	AllowedOrigins []string
	EnableMCP      bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = defaultDownloadTTL
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return nil
}
