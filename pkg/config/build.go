package config

import (
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
	"github.com/malbeclabs/budgetquery/pkg/store"
)

const (
	interpretMaxTokens    = 1024
	observationsMaxTokens = 1024
)

// Catalog loads the configured catalog, or the embedded one, and fills its hierarchy rows from
// SchemaXLSX when set.
func (cfg *Config) Catalog() (*catalog.Catalog, error) {
	var (
		c   *catalog.Catalog
		err error
	)
	if cfg.CatalogFile != "" {
		c, err = catalog.LoadFile(cfg.CatalogFile)
	} else {
		c, err = catalog.Default()
	}
	if err != nil {
		return nil, err
	}
	if cfg.SchemaXLSX != "" {
		if err := c.LoadHierarchiesXLSX(cfg.SchemaXLSX); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LLMClients returns the interpretation client and the observations client for the provider.
func (cfg *Config) LLMClients(log *slog.Logger) (interpret, observe pipeline.LLMClient, err error) {
	switch cfg.LLMProvider {
	case ProviderAnthropic:
		interpret = pipeline.NewAnthropicLLMClient(log, cfg.AnthropicAPIKey, anthropic.Model(cfg.AnthropicModel), interpretMaxTokens)
		observe = pipeline.NewAnthropicLLMClient(log, cfg.AnthropicAPIKey, anthropic.Model(cfg.AnthropicObservationsModel), observationsMaxTokens)
		return interpret, observe, nil
	case ProviderOpenAI:
		client, err := pipeline.NewOpenAILLMClient(log, cfg.OpenAIAPIKey, cfg.OpenAIModel, interpretMaxTokens)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

// Pipeline wires the catalog, the language model clients and the executor into a pipeline.
func (cfg *Config) Pipeline(log *slog.Logger, c *catalog.Catalog, executor store.Executor) (*pipeline.Pipeline, error) {
	interpret, observe, err := cfg.LLMClients(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM clients: %w", err)
	}
	prompts, err := pipeline.LoadPrompts()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	passes, err := pipeline.ParsePasses(cfg.TranslationPasses, c, interpret, prompts)
	if err != nil {
		return nil, err
	}
	return pipeline.New(&pipeline.Config{
		Logger:          log,
		LLM:             interpret,
		ObservationsLLM: observe,
		Catalog:         c,
		Prompts:         prompts,
		Store:           executor,
		Passes:          passes,
	})
}
