package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestObserver(t *testing.T, llm LLMClient) *Observer {
	t.Helper()
	o, err := NewObserver(&ObserverConfig{LLM: llm, Prompts: testPrompts(t)})
	require.NoError(t, err)
	return o
}

func TestBudgetQuery_Pipeline_ObserverSummarize(t *testing.T) {
	t.Parallel()

	llm := &mockLLMClient{responses: []string{"\n• Kenya holds the largest share.\n"}}
	o := newTestObserver(t, llm)

	csv := "country,total amount,% of total\nKenya,600,60.0%\nGhana,400,40.0%\n"
	got, err := o.Summarize(context.Background(), "budget by country", csv)
	require.NoError(t, err)
	require.Equal(t, "• Kenya holds the largest share.", got)

	call := llm.lastCall()
	require.Contains(t, call.system, "senior budget analyst")
	require.Contains(t, call.user, "budget by country")
	require.Contains(t, call.user, "(2 rows, columns: country, total amount, % of total)")
	require.Contains(t, call.user, "Kenya")
	require.Contains(t, call.user, "60.0%")
	require.NotContains(t, call.user, "{{")
}

func TestBudgetQuery_Pipeline_ObserverUnparseableData(t *testing.T) {
	t.Parallel()

	llm := &mockLLMClient{responses: []string{"• Something."}}
	o := newTestObserver(t, llm)

	raw := "a,b\n1,2,3\n"
	_, err := o.Summarize(context.Background(), "q", raw)
	require.NoError(t, err)

	call := llm.lastCall()
	require.Contains(t, call.user, "(unknown rows, columns: )")
	require.Contains(t, call.user, "a,b\n1,2,3")
}

func TestBudgetQuery_Pipeline_ObserverErrors(t *testing.T) {
	t.Parallel()

	llm := &mockLLMClient{responses: []string{"• x"}}
	_, err := newTestObserver(t, llm).Summarize(context.Background(), "q", "  ")
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Zero(t, llm.callCount())

	cause := errors.New("quota exceeded")
	_, err = newTestObserver(t, &mockLLMClient{err: cause}).Summarize(context.Background(), "q", "a\n1\n")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.ErrorIs(t, err, cause)

	_, err = newTestObserver(t, &mockLLMClient{responses: []string{" \n"}}).Summarize(context.Background(), "q", "a\n1\n")
	require.ErrorAs(t, err, &svcErr)
}
