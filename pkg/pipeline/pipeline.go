// Package pipeline turns a free-text budget question into validated SQL, runs it, and prepares
// the result for download and commentary. The steps are discrete: interpret, validate,
// execute, augment, export, observe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/dataset"
	"github.com/malbeclabs/budgetquery/pkg/export"
	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

// Config holds the configuration for the pipeline.
type Config struct {
	Logger          *slog.Logger
	LLM             LLMClient
	ObservationsLLM LLMClient // Optional; defaults to LLM
	Catalog         *catalog.Catalog
	Prompts         *Prompts // Optional; defaults to the embedded prompts
	Store           Executor
	Passes          []Pass
}

// Execution is a validated, executed and augmented query.
type Execution struct {
	SQL    string
	Result dataset.Augmented
	CSV    string // Delimited export with the ratio column as percentages
}

// RunResult holds the result of a full pipeline run. Execution and Observations are only set
// when the interpretation is ready.
type RunResult struct {
	Interpretation Interpretation
	Execution      *Execution
	Observations   string
}

// Pipeline orchestrates the question-answering process.
type Pipeline struct {
	log         *slog.Logger
	store       Executor
	gate        *SafetyGate
	interpreter *Interpreter
	observer    *Observer
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		prompts, err := LoadPrompts()
		if err != nil {
			return nil, err
		}
		cfg.Prompts = prompts
	}
	if cfg.ObservationsLLM == nil {
		cfg.ObservationsLLM = cfg.LLM
	}

	interpreter, err := NewInterpreter(&InterpreterConfig{
		Logger:  cfg.Logger,
		LLM:     cfg.LLM,
		Catalog: cfg.Catalog,
		Prompts: cfg.Prompts,
		Passes:  cfg.Passes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}
	observer, err := NewObserver(&ObserverConfig{
		Logger:  cfg.Logger,
		LLM:     cfg.ObservationsLLM,
		Prompts: cfg.Prompts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	return &Pipeline{
		log:         cfg.Logger,
		store:       cfg.Store,
		gate:        NewSafetyGate(cfg.Catalog.ForbiddenTokens...),
		interpreter: interpreter,
		observer:    observer,
	}, nil
}

// Gate returns the safety gate every execution path goes through.
func (p *Pipeline) Gate() *SafetyGate {
	return p.gate
}

// Interpret translates a question into SQL or a clarification request.
func (p *Pipeline) Interpret(ctx context.Context, userQuery, clarification string) (Interpretation, error) {
	return p.interpreter.Interpret(ctx, userQuery, clarification)
}

// Execute validates sql against the safety gate, runs it, and augments the result. Nothing
// reaches the store without passing the gate.
func (p *Pipeline) Execute(ctx context.Context, sql string) (*Execution, error) {
	start := time.Now()
	exec, err := p.execute(ctx, sql)
	metrics.ObserveStage("execute", metrics.Outcome(err), start)
	return exec, err
}

func (p *Pipeline) execute(ctx context.Context, sql string) (*Execution, error) {
	if err := p.gate.Validate(sql); err != nil {
		p.log.Warn("pipeline: query rejected", "sql", sql, "error", err)
		return nil, err
	}

	result, err := p.store.Execute(ctx, sql)
	if err != nil {
		p.log.Error("pipeline: query execution failed", "sql", sql, "error", err)
		return nil, err
	}

	augmented, err := dataset.Augment(result)
	if errors.Is(err, dataset.ErrAlreadyAugmented) {
		return nil, &InputError{Msg: fmt.Sprintf("query returns a column named %q, which is reserved; rename it", dataset.RatioColumn)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to augment result: %w", err)
	}

	csv, err := export.DelimitedText(augmented)
	if err != nil {
		return nil, fmt.Errorf("failed to export result: %w", err)
	}

	p.log.Info("pipeline: query executed",
		"rows", len(augmented.Rows),
		"columns", len(augmented.Columns),
		"ratio", augmented.HasRatio())

	return &Execution{SQL: sql, Result: augmented, CSV: csv}, nil
}

// Spreadsheet executes sql through the same gated path as Execute and renders the workbook.
func (p *Pipeline) Spreadsheet(ctx context.Context, sql string) ([]byte, error) {
	exec, err := p.Execute(ctx, sql)
	if err != nil {
		return nil, err
	}
	return SpreadsheetFor(exec)
}

// SpreadsheetFor renders an execution's result as a workbook.
func SpreadsheetFor(exec *Execution) ([]byte, error) {
	data, err := export.Spreadsheet(exec.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to render spreadsheet: %w", err)
	}
	return data, nil
}

// Observe returns plain-language observations about an executed result.
func (p *Pipeline) Observe(ctx context.Context, userQuery, delimitedText string) (string, error) {
	return p.observer.Summarize(ctx, userQuery, delimitedText)
}

// Run interprets a question and, when it is ready, executes it and generates observations.
func (p *Pipeline) Run(ctx context.Context, userQuery, clarification string) (*RunResult, error) {
	interpretation, err := p.Interpret(ctx, userQuery, clarification)
	if err != nil {
		return nil, err
	}
	out := &RunResult{Interpretation: interpretation}
	if interpretation.Status != StatusReady {
		return out, nil
	}

	exec, err := p.Execute(ctx, interpretation.SQL)
	if err != nil {
		return nil, err
	}
	out.Execution = exec

	observations, err := p.Observe(ctx, userQuery, exec.CSV)
	if err != nil {
		return nil, err
	}
	out.Observations = observations
	return out, nil
}
