package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/dataset"
	"github.com/malbeclabs/budgetquery/pkg/export"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

func testExecution(t *testing.T) *pipeline.Execution {
	t.Helper()
	a, err := dataset.Augment(dataset.Result{
		Columns: []string{"country", "total amount"},
		Kinds:   []dataset.Kind{dataset.KindText, dataset.KindNumeric},
		Rows:    [][]any{{"C", 60.0}, {"B", 30.0}, {"A", 10.0}},
	})
	require.NoError(t, err)
	csv, err := export.DelimitedText(a)
	require.NoError(t, err)
	return &pipeline.Execution{SQL: "SELECT 1", Result: a, CSV: csv}
}

func TestBudgetQuery_CLI_PrintRun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := printRun(&buf, &pipeline.RunResult{
		Interpretation: pipeline.Interpretation{Status: pipeline.StatusReady, SQL: "SELECT 1"},
		Execution:      testExecution(t),
		Observations:   "• C leads.",
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "SQL: SELECT 1")
	require.Contains(t, out, "% of total")
	require.Contains(t, out, "60.0%")
	require.Contains(t, out, "3 rows")
	require.True(t, strings.HasSuffix(out, "• C leads.\n"))

	buf.Reset()
	require.NoError(t, printRun(&buf, &pipeline.RunResult{
		Interpretation: pipeline.Interpretation{Status: pipeline.StatusClarificationNeeded, Question: "Which module?"},
	}))
	require.Contains(t, buf.String(), "Clarification needed: Which module?")

	buf.Reset()
	require.NoError(t, printRun(&buf, &pipeline.RunResult{
		Interpretation: pipeline.Interpretation{Status: pipeline.StatusCannotAnswer},
	}))
	require.Contains(t, buf.String(), "cannot be answered")
}

func TestBudgetQuery_CLI_PrintBatch(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := printBatch(&buf, []pipeline.BatchResult{
		{Query: "first", Result: &pipeline.RunResult{Interpretation: pipeline.Interpretation{Status: pipeline.StatusCannotAnswer}}},
		{Query: "second", Err: errors.New("boom")},
	})
	require.EqualError(t, err, "1 of 2 questions failed")
	out := buf.String()
	require.Contains(t, out, "== first\n")
	require.Contains(t, out, "== second\nError: boom\n")
}

func TestBudgetQuery_CLI_WriteSpreadsheet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, writeSpreadsheet(path, testExecution(t)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.DefaultSheetName)
	require.NoError(t, err)
	require.Equal(t, []string{"country", "total amount", "% of total"}, rows[0])
	require.Len(t, rows, 4)
}

func TestBudgetQuery_CLI_PrintSchema(t *testing.T) {
	t.Parallel()

	c, err := catalog.Default()
	require.NoError(t, err)
	prompts, err := pipeline.LoadPrompts()
	require.NoError(t, err)

	var preview, full bytes.Buffer
	printSchema(&preview, c, prompts, false)
	printSchema(&full, c, prompts, true)
	require.Contains(t, preview.String(), "Table: ")
	require.Contains(t, preview.String(), "...")
	require.Greater(t, full.Len(), preview.Len())
}
