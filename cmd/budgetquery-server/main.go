package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/budgetquery/pkg/config"
	"github.com/malbeclabs/budgetquery/pkg/feedback"
	"github.com/malbeclabs/budgetquery/pkg/logger"
	"github.com/malbeclabs/budgetquery/pkg/metrics"
	"github.com/malbeclabs/budgetquery/pkg/server"
	"github.com/malbeclabs/budgetquery/pkg/store"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:5000"
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address (or set LISTEN_ADDR env var)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")
	envFileFlag := flag.String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", nil, "CORS allowed origins (or set ALLOWED_ORIGINS env var, comma-separated)")
	enableMCPFlag := flag.Bool("enable-mcp", false, "serve the query tools over MCP at /mcp (or set ENABLE_MCP=true)")
	flag.Parse()

	if err := godotenv.Load(*envFileFlag); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", *envFileFlag, err)
	}

	// Override flags with environment variables if set
	if envListenAddr := os.Getenv("LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envOrigins := os.Getenv("ALLOWED_ORIGINS"); envOrigins != "" && len(*allowedOriginsFlag) == 0 {
		*allowedOriginsFlag = strings.Split(envOrigins, ",")
	}
	if os.Getenv("ENABLE_MCP") == "true" {
		*enableMCPFlag = true
	}

	log := logger.New(*verboseFlag)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("server: received signal", "signal", sig.String())
		cancel()
	}()

	metricsServerErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	c, err := cfg.Catalog()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	executor, err := store.New(cfg.Store(log))
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer func() {
		if err := executor.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	p, err := cfg.Pipeline(log, c, executor)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	var feedbackLog *feedback.Log
	if cfg.FeedbackFile != "" {
		feedbackLog, err = feedback.New(feedback.Config{Logger: log, Path: cfg.FeedbackFile})
		if err != nil {
			return fmt.Errorf("failed to create feedback log: %w", err)
		}
	}

	listener, err := net.Listen("tcp", *listenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", *listenAddrFlag, err)
	}

	srv, err := server.New(server.Config{
		Logger:            log,
		Listener:          listener,
		ReadHeaderTimeout: 30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		Version:           version,
		Pipeline:          p,
		Tables:            executor,
		Feedback:          feedbackLog,
		DownloadTTL:       cfg.DownloadTTL,
		AllowedOrigins:    *allowedOriginsFlag,
		EnableMCP:         *enableMCPFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("server: starting",
		"version", version,
		"commit", commit,
		"provider", cfg.LLMProvider,
		"driver", cfg.DBDriver,
		"passes", cfg.TranslationPasses)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("server: shutting down", "reason", ctx.Err())
		return <-serverErrCh
	case err := <-metricsServerErrCh:
		cancel()
		return fmt.Errorf("metrics server error: %w", err)
	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
