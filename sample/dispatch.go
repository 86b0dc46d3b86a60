package sample

import (
	"context"
)

// Evaluator runs one trial. *Protocol implements it; tests substitute
// deterministic stubs.
type Evaluator interface {
	Evaluate(ctx context.Context, metrics []Metric, req Request) (Result, error)
}

// RunSamples evaluates n independent trials of the same request and
// collects the results in call order. The first failing trial aborts
// the dispatch; results of earlier trials are discarded, not returned.
func RunSamples(ctx context.Context, ev Evaluator, n int, metrics []Metric, req Request) ([]Result, error) {
	results := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		res, err := ev.Evaluate(ctx, metrics, req)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
