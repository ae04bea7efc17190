package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// llmFunc answers each prompt with a function, so concurrent callers get deterministic replies.
type llmFunc func(systemPrompt, userPrompt string) (string, error)

func (f llmFunc) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(systemPrompt, userPrompt)
}

func TestBudgetQuery_Pipeline_RunBatch(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	llm := llmFunc(func(_, user string) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		switch {
		case strings.HasPrefix(user, "User Question: by country"):
			return "SELECT country, SUM(total_amount) FROM GC7Budget GROUP BY country", nil
		case strings.HasPrefix(user, "User Question: vague"):
			return "CLARIFICATION_NEEDED: Which module?", nil
		case strings.HasPrefix(user, "User Question: broken"):
			return "", nil
		default:
			return "• observation", nil
		}
	})
	p := newTestPipeline(t, llm, &mockExecutor{result: countryTotals()})

	queries := []string{"by country", "vague", "broken", "by country"}
	results, err := p.RunBatch(context.Background(), queries, 2)
	require.NoError(t, err)
	require.Len(t, results, len(queries))
	require.LessOrEqual(t, peak.Load(), int32(2))

	for i, q := range queries {
		require.Equal(t, q, results[i].Query)
	}

	require.NoError(t, results[0].Err)
	require.Equal(t, StatusReady, results[0].Result.Interpretation.Status)
	require.NotNil(t, results[0].Result.Execution)
	require.Equal(t, "• observation", results[0].Result.Observations)

	require.NoError(t, results[1].Err)
	require.Equal(t, StatusClarificationNeeded, results[1].Result.Interpretation.Status)
	require.Nil(t, results[1].Result.Execution)

	var serviceErr *ServiceError
	require.ErrorAs(t, results[2].Err, &serviceErr)
	require.Nil(t, results[2].Result)

	require.NoError(t, results[3].Err)
}

func TestBudgetQuery_Pipeline_RunBatchEmpty(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &mockLLMClient{}, &mockExecutor{})
	results, err := p.RunBatch(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}
