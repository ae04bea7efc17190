// Package config holds the process configuration, loaded once from the environment and passed
// by pointer into constructors.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/budgetquery/pkg/store"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	DefaultAnthropicModel             = "claude-sonnet-4-5"
	DefaultAnthropicObservationsModel = "claude-haiku-4-5-20251001"
	DefaultTranslationPasses          = "physical"
	DefaultFeedbackFile               = "feedback_logs.xlsx"
	DefaultDownloadTTL                = 10 * time.Minute
)

type Config struct {
	LLMProvider                string
	AnthropicAPIKey            string
	AnthropicModel             string
	AnthropicObservationsModel string
	OpenAIAPIKey               string
	OpenAIModel                string

	DBDriver   string
	DBHost     string
	DBPort     int
	DBName     string
	DBPath     string
	DBUser     string
	DBPassword string

	CatalogFile       string // Optional; the embedded catalog is used when empty
	SchemaXLSX        string // Optional hierarchy values workbook
	TranslationPasses string
	FeedbackFile      string
	DownloadTTL       time.Duration
}

// Default returns the configuration used before the environment is applied.
func Default() *Config {
	return &Config{
		LLMProvider:                ProviderAnthropic,
		AnthropicModel:             DefaultAnthropicModel,
		AnthropicObservationsModel: DefaultAnthropicObservationsModel,
		DBDriver:                   store.DriverSQLServer,
		TranslationPasses:          DefaultTranslationPasses,
		FeedbackFile:               DefaultFeedbackFile,
		DownloadTTL:                DefaultDownloadTTL,
	}
}

// LoadFromEnv overrides fields with the environment variables that are set.
func (cfg *Config) LoadFromEnv() error {
	for name, dst := range map[string]*string{
		"LLM_PROVIDER":                 &cfg.LLMProvider,
		"ANTHROPIC_API_KEY":            &cfg.AnthropicAPIKey,
		"ANTHROPIC_MODEL":              &cfg.AnthropicModel,
		"ANTHROPIC_OBSERVATIONS_MODEL": &cfg.AnthropicObservationsModel,
		"OPENAI_API_KEY":               &cfg.OpenAIAPIKey,
		"OPENAI_MODEL":                 &cfg.OpenAIModel,
		"DB_DRIVER":                    &cfg.DBDriver,
		"DB_HOST":                      &cfg.DBHost,
		"DB_NAME":                      &cfg.DBName,
		"DB_PATH":                      &cfg.DBPath,
		"SQL_USER_NAME":                &cfg.DBUser,
		"SQL_PWD":                      &cfg.DBPassword,
		"CATALOG_FILE":                 &cfg.CatalogFile,
		"SCHEMA_XLSX":                  &cfg.SchemaXLSX,
		"FEEDBACK_FILE":                &cfg.FeedbackFile,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	// An explicitly empty value selects single-hop translation.
	if v, ok := os.LookupEnv("TRANSLATION_PASSES"); ok {
		cfg.TranslationPasses = v
	}

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		cfg.DBPort = port
	}
	if v := os.Getenv("DOWNLOAD_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOWNLOAD_TTL %q: %w", v, err)
		}
		cfg.DownloadTTL = ttl
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	return nil
}

// Load returns the defaults with the environment applied.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	switch cfg.LLMProvider {
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		if cfg.AnthropicModel == "" {
			return errors.New("anthropic model is required")
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
	if cfg.DBDriver == "" {
		return errors.New("database driver is required")
	}
	if cfg.DownloadTTL <= 0 {
		return errors.New("download TTL must be greater than 0")
	}
	return nil
}

// Store returns the store configuration. Connection parameters come only from here.
func (cfg *Config) Store(log *slog.Logger) store.Config {
	return store.Config{
		Logger:   log,
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Database: cfg.DBName,
		Path:     cfg.DBPath,
		Username: cfg.DBUser,
		Password: cfg.DBPassword,
	}
}
