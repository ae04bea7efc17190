package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/budgetquery/pkg/store"
)

var envVars = []string{
	"LLM_PROVIDER", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_OBSERVATIONS_MODEL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "DB_DRIVER", "DB_HOST", "DB_PORT", "DB_NAME", "DB_PATH",
	"SQL_USER_NAME", "SQL_PWD", "CATALOG_FILE", "SCHEMA_XLSX", "TRANSLATION_PASSES",
	"FEEDBACK_FILE", "DOWNLOAD_TTL",
}

// clearEnv unsets every variable the loader reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestBudgetQuery_Config_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderAnthropic, cfg.LLMProvider)
	require.Equal(t, DefaultAnthropicModel, cfg.AnthropicModel)
	require.Equal(t, store.DriverSQLServer, cfg.DBDriver)
	require.Equal(t, DefaultTranslationPasses, cfg.TranslationPasses)
	require.Equal(t, DefaultDownloadTTL, cfg.DownloadTTL)

	// No API key configured.
	require.Error(t, cfg.Validate())
}

func TestBudgetQuery_Config_LoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", " OpenAI ")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DB_DRIVER", store.DriverPostgres)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("DB_NAME", "gc7")
	t.Setenv("SQL_USER_NAME", "reader")
	t.Setenv("SQL_PWD", "secret")
	t.Setenv("TRANSLATION_PASSES", "")
	t.Setenv("DOWNLOAD_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	require.Equal(t, "", cfg.TranslationPasses)
	require.Equal(t, 90*time.Second, cfg.DownloadTTL)

	log := slog.Default()
	require.Equal(t, store.Config{
		Logger:   log,
		Driver:   store.DriverPostgres,
		Host:     "db.internal",
		Port:     6432,
		Database: "gc7",
		Username: "reader",
		Password: "secret",
	}, cfg.Store(log))
}

func TestBudgetQuery_Config_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PORT", "not-a-port")
	_, err := Load()
	require.ErrorContains(t, err, "DB_PORT")

	clearEnv(t)
	t.Setenv("DOWNLOAD_TTL", "soon")
	_, err = Load()
	require.ErrorContains(t, err, "DOWNLOAD_TTL")
}

func TestBudgetQuery_Config_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := Default()
		cfg.AnthropicAPIKey = "key"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.LLMProvider = "gemini" }},
		{name: "missing anthropic model", mutate: func(c *Config) { c.AnthropicModel = "" }},
		{name: "openai without key", mutate: func(c *Config) { c.LLMProvider = ProviderOpenAI }},
		{name: "missing driver", mutate: func(c *Config) { c.DBDriver = "" }},
		{name: "zero ttl", mutate: func(c *Config) { c.DownloadTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
