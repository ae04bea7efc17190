// Package cli is the budgetquery command line: ask questions, list tables and show the prompt
// schema without running the HTTP server.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/budgetquery/pkg/config"
	"github.com/malbeclabs/budgetquery/pkg/logger"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
	"github.com/malbeclabs/budgetquery/pkg/store"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	rootCmd := &cobra.Command{
		Use:           "budgetquery",
		Short:         "Ask budget questions in plain language and get SQL-backed answers.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	var envFile string
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	rootCmd.AddCommand(
		NewAskCmd().Command(),
		NewTablesCmd().Command(),
		NewSchemaCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}

	return exitCodeSuccess
}

// env is what every subcommand needs: the loaded configuration and a logger.
type env struct {
	log *slog.Logger
	cfg *config.Config
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	envFile, err := cmd.Root().PersistentFlags().GetString("env-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &env{log: logger.New(verbose), cfg: cfg}, nil
}

// pipeline builds the store and the pipeline. The caller closes the returned executor.
func (e *env) pipeline() (*pipeline.Pipeline, store.Executor, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	c, err := e.cfg.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	executor, err := store.New(e.cfg.Store(e.log))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	p, err := e.cfg.Pipeline(e.log, c, executor)
	if err != nil {
		_ = executor.Close()
		return nil, nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return p, executor, nil
}
