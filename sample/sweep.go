package sample

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SampleSet maps each swept parameter value to the results of its
// trials. When a value appears several times in the sweep, the last
// completed dispatch wins, so every key holds exactly SampleSize
// entries.
type SampleSet map[float64][]Result

// Config describes one parameter sweep.
type Config struct {
	// SampleSize is the number of trials per parameter value.
	SampleSize int
	// ParamName is the swept parameter of the base request.
	ParamName string
	// Values is the ordered, non-empty sequence of swept values.
	Values []float64
	// Jobs is the worker pool size; 0 uses one worker per available
	// execution unit.
	Jobs int
	// Metrics to evaluate for every trial.
	Metrics []Metric
	// Base supplies all non-swept parameters.
	Base Request

	// Progress, when set, is called after each value's dispatch
	// completes, with the number of completed values and the total.
	// It runs on the collector goroutine and must not block for long.
	Progress func(done, total int)
	// Resume, when set, may supply previously computed results for a
	// value; such values are not dispatched again.
	Resume func(value float64) ([]Result, bool)
	// Completed, when set, is called with each value's results as its
	// dispatch finishes, before the sweep returns. Called on the
	// collector goroutine.
	Completed func(value float64, results []Result)
}

func (c *Config) validate() error {
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive, got %d", c.SampleSize)
	}
	if len(c.Values) == 0 {
		return errors.New("no parameter values to sweep")
	}
	if _, err := c.Base.Override(c.ParamName, c.Values[0]); err != nil {
		return err
	}
	if len(c.Metrics) == 0 {
		return errors.New("no metrics requested")
	}
	for _, m := range c.Metrics {
		if !KnownMetric(m) {
			return fmt.Errorf("unknown metric: %s", m)
		}
	}
	return nil
}

type dispatchResult struct {
	value   float64
	results []Result
}

// Sweep runs SampleSize trials for every configured value of the swept
// parameter, distributing one dispatch unit per value across a worker
// pool. Dispatches complete in arbitrary order; the returned set is
// keyed per value regardless. Any failing dispatch aborts the whole
// sweep and no partial result is returned.
func Sweep(ctx context.Context, ev Evaluator, c *Config) (SampleSet, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	jobs := c.Jobs
	if jobs == 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	set := make(SampleSet, len(c.Values))
	total := len(c.Values)
	done := 0

	pending := make([]float64, 0, len(c.Values))
	for _, value := range c.Values {
		if c.Resume != nil {
			if results, ok := c.Resume(value); ok {
				set[value] = results
				done++
				if c.Progress != nil {
					c.Progress(done, total)
				}
				continue
			}
		}
		pending = append(pending, value)
	}
	if len(pending) > 0 {
		log.Infof("Using %d worker(s) to evaluate %d value(s) of %s", jobs, len(pending), c.ParamName)
	}

	g, gctx := errgroup.WithContext(ctx)

	tasks := make(chan float64, len(pending))
	for _, value := range pending {
		tasks <- value
	}
	close(tasks)

	finished := make(chan dispatchResult, len(pending))
	for i := 0; i < jobs; i++ {
		g.Go(func() error {
			for value := range tasks {
				req, err := c.Base.Override(c.ParamName, value)
				if err != nil {
					return err
				}
				results, err := RunSamples(gctx, ev, c.SampleSize, c.Metrics, req)
				if err != nil {
					return err
				}
				select {
				case finished <- dispatchResult{value, results}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	// The finished channel is closed once all workers are done, so the
	// collector below drains every buffered dispatch even when they
	// complete out of submission order.
	var sweepErr error
	go func() {
		sweepErr = g.Wait()
		close(finished)
	}()

	for d := range finished {
		set[d.value] = d.results
		done++
		log.Debugf("%s=%v evaluated", c.ParamName, d.value)
		if c.Completed != nil {
			c.Completed(d.value, d.results)
		}
		if c.Progress != nil {
			c.Progress(done, total)
		}
	}

	if sweepErr != nil {
		return nil, sweepErr
	}
	return set, nil
}
