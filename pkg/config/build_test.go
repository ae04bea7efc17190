package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

type nopExecutor struct{}

func (nopExecutor) Execute(context.Context, string) (dataset.Result, error) {
	return dataset.Result{}, nil
}
func (nopExecutor) Tables(context.Context) ([]string, error) { return nil, nil }
func (nopExecutor) Close() error                             { return nil }

func TestBudgetQuery_Config_Catalog(t *testing.T) {
	t.Parallel()

	cfg := Default()
	c, err := cfg.Catalog()
	require.NoError(t, err)
	require.NotEmpty(t, c.Tables)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dialect: DuckDB
tables:
  - name: budget
    physical: budget
    columns:
      - {name: country, physical: country, type: text}
`), 0o600))
	cfg.CatalogFile = path
	c, err = cfg.Catalog()
	require.NoError(t, err)
	require.Equal(t, "DuckDB", c.Dialect)

	cfg.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.Catalog()
	require.Error(t, err)
}

func TestBudgetQuery_Config_LLMClients(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.AnthropicAPIKey = "sk-ant-test"
	interpret, observe, err := cfg.LLMClients(slog.Default())
	require.NoError(t, err)
	require.IsType(t, &pipeline.AnthropicLLMClient{}, interpret)
	require.NotSame(t, interpret, observe)

	cfg.LLMProvider = ProviderOpenAI
	_, _, err = cfg.LLMClients(slog.Default())
	require.Error(t, err)

	cfg.OpenAIAPIKey = "sk-test"
	interpret, observe, err = cfg.LLMClients(slog.Default())
	require.NoError(t, err)
	require.IsType(t, &pipeline.OpenAILLMClient{}, interpret)
	require.Same(t, interpret, observe)

	cfg.LLMProvider = "gemini"
	_, _, err = cfg.LLMClients(slog.Default())
	require.Error(t, err)
}

func TestBudgetQuery_Config_Pipeline(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.AnthropicAPIKey = "sk-ant-test"
	c, err := cfg.Catalog()
	require.NoError(t, err)

	p, err := cfg.Pipeline(slog.Default(), c, nopExecutor{})
	require.NoError(t, err)
	require.NotNil(t, p)

	cfg.TranslationPasses = "physical,bogus"
	_, err = cfg.Pipeline(slog.Default(), c, nopExecutor{})
	require.ErrorContains(t, err, "bogus")
}
