package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/dataset"
)

// mockLLMClient returns canned responses in order and records every call.
type mockLLMClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []mockCall
}

type mockCall struct {
	system string
	user   string
}

func (m *mockLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{system: systemPrompt, user: userPrompt})
	if m.err != nil {
		return "", m.err
	}
	if len(m.calls) > len(m.responses) {
		return "", nil
	}
	return m.responses[len(m.calls)-1], nil
}

func (m *mockLLMClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockLLMClient) lastCall() mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// mockExecutor returns a fixed result and records the statements it receives.
type mockExecutor struct {
	mu      sync.Mutex
	result  dataset.Result
	err     error
	queries []string
}

func (m *mockExecutor) Execute(ctx context.Context, sql string) (dataset.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, sql)
	if m.err != nil {
		return dataset.Result{}, m.err
	}
	return m.result, nil
}

func (m *mockExecutor) executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func testPrompts(t *testing.T) *Prompts {
	t.Helper()
	p, err := LoadPrompts()
	require.NoError(t, err)
	return p
}

func countryTotals() dataset.Result {
	return dataset.Result{
		Columns: []string{"country", "total amount"},
		Kinds:   []dataset.Kind{dataset.KindText, dataset.KindNumeric},
		Rows: [][]any{
			{"A", int64(10)},
			{"B", int64(30)},
			{"C", int64(60)},
		},
	}
}
