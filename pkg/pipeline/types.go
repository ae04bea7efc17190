package pipeline

import (
	"context"
	"fmt"

	"github.com/malbeclabs/budgetquery/pkg/dataset"
)

// Sentinels the model uses instead of SQL.
const (
	ClarificationSentinel = "CLARIFICATION_NEEDED"
	CannotAnswerSentinel  = "CANNOT_ANSWER"
)

// Status is the outcome of interpreting a user query.
type Status string

const (
	StatusReady               Status = "ready"
	StatusClarificationNeeded Status = "clarification_needed"
	StatusCannotAnswer        Status = "cannot_answer"
)

// Interpretation is the result of Interpreter.Interpret. SQL is set only when Status is
// StatusReady; Question and OriginalQuery only when it is StatusClarificationNeeded.
type Interpretation struct {
	Status        Status `json:"status"`
	SQL           string `json:"sql,omitempty"`
	Question      string `json:"question,omitempty"`
	OriginalQuery string `json:"original_query,omitempty"`
}

// LLMClient is the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Executor runs a single read-only statement and materializes the full result.
type Executor interface {
	Execute(ctx context.Context, sql string) (dataset.Result, error)
}

// InputError reports a caller mistake such as an empty query or missing SQL.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// UnsafeQueryError reports a statement rejected by the safety gate.
type UnsafeQueryError struct {
	Keyword string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("forbidden keyword detected: %s", e.Keyword)
}

// ServiceError reports a failed or empty response from the language model.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return e.Op + ": language model service failed"
	}
	return fmt.Sprintf("%s: language model service failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
