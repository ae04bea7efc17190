package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/budgetquery/pkg/export"
	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

// ObserverConfig holds the configuration for the observer.
type ObserverConfig struct {
	Logger  *slog.Logger
	LLM     LLMClient
	Prompts *Prompts
}

// Observer writes a short plain-language commentary on a query result.
type Observer struct {
	log     *slog.Logger
	llm     LLMClient
	prompts *Prompts
}

// NewObserver creates a new Observer.
func NewObserver(cfg *ObserverConfig) (*Observer, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Observer{log: log, llm: cfg.LLM, prompts: cfg.Prompts}, nil
}

// Summarize returns observations about delimitedText, the CSV export of a result, in the
// context of the question the user asked. Text that does not parse as CSV is passed through
// verbatim with an unknown row count.
func (o *Observer) Summarize(ctx context.Context, userQuery, delimitedText string) (string, error) {
	start := time.Now()
	text, err := o.summarize(ctx, userQuery, delimitedText)
	metrics.ObserveStage("observe", metrics.Outcome(err), start)
	return text, err
}

func (o *Observer) summarize(ctx context.Context, userQuery, delimitedText string) (string, error) {
	if strings.TrimSpace(delimitedText) == "" {
		return "", &InputError{Msg: "no data provided"}
	}

	rowCount, columns, preview := "unknown", "", delimitedText
	if header, rows, err := export.ParseDelimited(delimitedText); err == nil {
		rowCount = strconv.Itoa(len(rows))
		columns = strings.Join(header, ", ")
		preview = export.TableString(header, rows)
	} else {
		o.log.Debug("pipeline: observation data is not valid csv", "error", err)
	}

	userPrompt := o.prompts.BuildObserveData(userQuery, rowCount, columns, strings.TrimRight(preview, "\n"))
	response, err := o.llm.Complete(ctx, o.prompts.Observe, userPrompt)
	if err != nil {
		return "", &ServiceError{Op: "observe", Err: err}
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", &ServiceError{Op: "observe", Err: errEmptyResponse}
	}
	o.log.Info("pipeline: observations generated", "rows", rowCount, "length", len(response))
	return response, nil
}
