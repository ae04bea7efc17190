package pipeline

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
)

const defaultBatchConcurrency = 4

// BatchResult is the outcome of one question in a batch. Err is per question so one failure
// does not hide the answers to the others.
type BatchResult struct {
	Query  string
	Result *RunResult
	Err    error
}

// RunBatch runs each question through Run with at most concurrency in flight. Results are
// returned in the order of queries.
func (p *Pipeline) RunBatch(ctx context.Context, queries []string, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	pool := pond.NewResultPool[BatchResult](concurrency)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	for _, q := range queries {
		group.Submit(func() BatchResult {
			res, err := p.Run(ctx, q, "")
			if err != nil {
				p.log.Warn("pipeline: batch question failed", "query", q, "error", err)
			}
			return BatchResult{Query: q, Result: res, Err: err}
		})
	}

	results, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to run batch: %w", err)
	}
	return results, nil
}
