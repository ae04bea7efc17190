package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

var errEmptyResponse = errors.New("empty response")

// InterpreterConfig holds the configuration for the interpreter.
type InterpreterConfig struct {
	Logger  *slog.Logger
	LLM     LLMClient
	Catalog *catalog.Catalog
	Prompts *Prompts
	Passes  []Pass // Applied in order to ready SQL; empty means the model's SQL is used directly
}

// Interpreter translates a natural language question into SQL over the logical schema, or into
// a clarification request when the question is ambiguous.
type Interpreter struct {
	log          *slog.Logger
	llm          LLMClient
	passes       []Pass
	systemPrompt string
}

// NewInterpreter creates a new Interpreter. The system prompt is built once from the catalog.
func NewInterpreter(cfg *InterpreterConfig) (*Interpreter, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter{
		log:          log,
		llm:          cfg.LLM,
		passes:       cfg.Passes,
		systemPrompt: cfg.Prompts.BuildInterpretPrompt(cfg.Catalog),
	}, nil
}

// SystemPrompt returns the prompt sent with every interpretation request.
func (i *Interpreter) SystemPrompt() string {
	return i.systemPrompt
}

// Interpret classifies the model's answer to userQuery. A non-empty clarification is the user's
// answer to an earlier clarification question and is appended as context.
func (i *Interpreter) Interpret(ctx context.Context, userQuery, clarification string) (Interpretation, error) {
	start := time.Now()
	result, err := i.interpret(ctx, userQuery, clarification)
	outcome := string(result.Status)
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveStage("interpret", outcome, start)
	return result, err
}

func (i *Interpreter) interpret(ctx context.Context, userQuery, clarification string) (Interpretation, error) {
	if strings.TrimSpace(userQuery) == "" {
		return Interpretation{}, &InputError{Msg: "no query provided"}
	}

	query := userQuery
	if strings.TrimSpace(clarification) != "" {
		query = fmt.Sprintf("%s (Context: %s)", userQuery, clarification)
	}

	response, err := i.llm.Complete(ctx, i.systemPrompt, fmt.Sprintf("User Question: %s\nSQL Query:", query))
	if err != nil {
		return Interpretation{}, &ServiceError{Op: "interpret", Err: err}
	}
	text := cleanResponse(response)
	if text == "" {
		return Interpretation{}, &ServiceError{Op: "interpret", Err: errEmptyResponse}
	}

	if strings.HasPrefix(text, ClarificationSentinel) {
		question := strings.TrimSpace(strings.TrimPrefix(text, ClarificationSentinel))
		question = strings.TrimSpace(strings.TrimPrefix(question, ":"))
		i.log.Info("pipeline: clarification needed", "query", userQuery, "question", question)
		return Interpretation{
			Status:        StatusClarificationNeeded,
			Question:      question,
			OriginalQuery: userQuery,
		}, nil
	}
	if text == CannotAnswerSentinel {
		i.log.Info("pipeline: cannot answer", "query", userQuery)
		return Interpretation{Status: StatusCannotAnswer}, nil
	}

	sql := text
	for _, pass := range i.passes {
		rewritten, err := pass.Rewrite(ctx, sql)
		if err != nil {
			i.log.Warn("pipeline: translation pass failed", "pass", pass.Name(), "error", err)
			return Interpretation{}, fmt.Errorf("translation pass %s: %w", pass.Name(), err)
		}
		sql = rewritten
	}

	i.log.Info("pipeline: query interpreted", "query", userQuery, "sql", sql)
	return Interpretation{Status: StatusReady, SQL: sql}, nil
}

// cleanResponse strips code fences and a leading "sql:" label from model output.
func cleanResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = stripCodeFence(text)
	}
	if len(text) >= 4 && strings.EqualFold(text[:4], "sql:") {
		text = text[4:]
	}
	return strings.TrimSpace(text)
}

func stripCodeFence(text string) string {
	text = strings.TrimPrefix(text, "```")
	// Drop a language tag such as "sql" on the opening fence line.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(text[:nl]); isLanguageTag(tag) {
			text = text[nl+1:]
		}
	} else if len(text) >= 3 && strings.EqualFold(text[:3], "sql") && (len(text) == 3 || isSpace(text[3])) {
		text = text[3:]
	}
	text = strings.TrimSpace(text)
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

var languageTags = map[string]struct{}{
	"": {}, "sql": {}, "tsql": {}, "t-sql": {}, "mssql": {}, "postgresql": {}, "postgres": {},
	"duckdb": {}, "clickhouse": {}, "text": {}, "plaintext": {},
}

func isLanguageTag(s string) bool {
	_, ok := languageTags[strings.ToLower(s)]
	return ok
}
