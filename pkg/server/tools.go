package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/budgetquery/pkg/metrics"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

const (
	toolInterpret  = "interpret_budget_question"
	toolQuery      = "run_budget_query"
	toolListTables = "list_tables"
)

type InterpretInput struct {
	Query         string `json:"query" jsonschema:"the budget question in plain language"`
	Clarification string `json:"clarification,omitempty" jsonschema:"answer to a previous clarification question"`
}

type QueryInput struct {
	SQL string `json:"sql" jsonschema:"a read-only SELECT statement"`
}

type QueryOutput struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	CSVData  string           `json:"csv_data"`
}

type ListTablesInput struct{}

type ListTablesOutput struct {
	Tables []string `json:"tables"`
}

func (s *Server) newMCPServer() (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "Budget Query MCP Server",
		Version: s.cfg.Version,
	}, nil)

	if err := addTool(s, server, toolInterpret, `
		Translate a budget question into a SQL statement over the budget catalog.
		The result status is one of:
		- ready: sql holds the statement to run with run_budget_query.
		- clarification_needed: ask the user the question and call again with the answer as clarification.
		- cannot_answer: the catalog cannot answer the question.
	`, s.interpretTool); err != nil {
		return nil, err
	}

	if err := addTool(s, server, toolQuery, `
		Run a read-only SELECT statement against the budget store.
		Statements containing data-modifying keywords are rejected.
		When the result has a single numeric column, a "% of total" column is appended.
	`, s.queryTool); err != nil {
		return nil, err
	}

	if s.cfg.Tables != nil {
		if err := addTool(s, server, toolListTables, "List the tables of the budget store.", s.listTablesTool); err != nil {
			return nil, err
		}
	}

	return server, nil
}

func addTool[In, Out any](s *Server, server *mcp.Server, name, description string, handle func(context.Context, In) (Out, error)) error {
	in, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to create %s input schema: %w", name, err)
	}
	out, err := jsonschema.For[Out](nil)
	if err != nil {
		return fmt.Errorf("failed to create %s output schema: %w", name, err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  in,
		OutputSchema: out,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		res, err := handle(ctx, req)
		metrics.ToolCallsTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
		metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			s.log.Warn("mcp/tool: call failed", "tool", name, "error", err)
			var zero Out
			return nil, zero, err
		}
		s.log.Debug("mcp/tool: call handled", "tool", name, "duration", time.Since(start))
		return nil, res, nil
	})
	return nil
}

func (s *Server) interpretTool(ctx context.Context, req InterpretInput) (pipeline.Interpretation, error) {
	return s.cfg.Pipeline.Interpret(ctx, req.Query, req.Clarification)
}

func (s *Server) queryTool(ctx context.Context, req QueryInput) (QueryOutput, error) {
	exec, err := s.cfg.Pipeline.Execute(ctx, req.SQL)
	if err != nil {
		return QueryOutput{}, err
	}

	rows := make([]map[string]any, 0, len(exec.Result.Rows))
	for _, row := range exec.Result.Rows {
		m := make(map[string]any, len(row))
		for i, col := range exec.Result.Columns {
			m[col] = row[i]
		}
		rows = append(rows, m)
	}

	return QueryOutput{
		Columns:  exec.Result.Columns,
		Rows:     rows,
		RowCount: len(rows),
		CSVData:  exec.CSV,
	}, nil
}

func (s *Server) listTablesTool(ctx context.Context, _ ListTablesInput) (ListTablesOutput, error) {
	tables, err := s.cfg.Tables.Tables(ctx)
	if err != nil {
		return ListTablesOutput{}, err
	}
	if tables == nil {
		tables = []string{}
	}
	return ListTablesOutput{Tables: tables}, nil
}
