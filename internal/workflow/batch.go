package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type BatchResult struct {
	CompanyID string
	Outcome   *Outcome
	Err       error
}

// RunBatch runs every company with at most concurrency runs in flight.
// Results keep the input order; one failed run does not stop the others.
func (w *Workflow) RunBatch(ctx context.Context, companyIDs []string, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]BatchResult, len(companyIDs))
	var eg errgroup.Group
	eg.SetLimit(concurrency)
	for i, id := range companyIDs {
		eg.Go(func() error {
			out, err := w.Run(ctx, id)
			if err != nil {
				w.logger.Error("Run for %s failed: %v", id, err)
			}
			results[i] = BatchResult{CompanyID: id, Outcome: out, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
