// Package sample drives repeated stochastic trials of an external
// evolution simulator and the corresponding reconciliation program,
// sweeping one generation parameter over a range of values and
// aggregating per-trial metrics.
package sample

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/op/go-logging"

	"github.com/crobine/evosample/subproc"
	"github.com/crobine/evosample/tree"
)

var log = logging.MustGetLogger("sample")

// Metric identifies an evaluated quantity.
type Metric string

const (
	// MetricScoreDif is the difference between the duplication-loss
	// cost of the original tree and of the reconciled tree.
	MetricScoreDif Metric = "scoredif"
	// MetricDuration is the wall-clock time of the reconciliation
	// call, in seconds.
	MetricDuration Metric = "duration"
)

// KnownMetric returns true for a supported metric name.
func KnownMetric(m Metric) bool {
	return m == MetricScoreDif || m == MetricDuration
}

// Result maps metric names to their values for a single trial.
type Result map[Metric]float64

// ProtocolError reports well-formed but structurally unexpected output
// from one of the external programs, e.g. a wrong line count.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Message
}

// InvariantError reports a reconciliation which is more costly than the
// ground truth. This signals a correctness bug in the external
// reconciler and is never clamped or ignored.
type InvariantError struct {
	OriginalScore   int
	ReconciledScore int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("non-parsimonious reconciliation: cost %d exceeds original cost %d",
		e.ReconciledScore, e.OriginalScore)
}

// ProcessRunner abstracts subprocess invocation for the protocol.
// *subproc.Runner implements it.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args []string, input string) (stdout, stderr string, err error)
}

// Protocol invokes the simulator and reconciler binaries on NHX-encoded
// event trees.
type Protocol struct {
	// Simulator is the path of the evolution simulator binary.
	Simulator string
	// Reconciler is the path of the reconciliation binary.
	Reconciler string
	// Runner executes the binaries; a zero-value subproc.Runner is
	// used when nil.
	Runner ProcessRunner
}

func (p *Protocol) runner() ProcessRunner {
	if p.Runner == nil {
		return &subproc.Runner{}
	}
	return p.Runner
}

// Simulate runs the simulator with the request's parameters as
// positional arguments and decodes the original and erased trees from
// the first two output lines. A trailing metadata line is ignored.
func (p *Protocol) Simulate(ctx context.Context, req Request) (original, erased *tree.Tree, err error) {
	stdout, _, err := p.runner().Run(ctx, p.Simulator, req.Args(), "")
	if err != nil {
		return nil, nil, err
	}

	lines := strings.Split(stdout, "\n")
	if len(lines) < 2 || lines[1] == "" {
		return nil, nil, &ProtocolError{
			Message: fmt.Sprintf("simulator produced %d tree line(s), want 2", nonEmptyLines(lines)),
		}
	}

	original, err = tree.ParseNHX(strings.NewReader(lines[0]))
	if err != nil {
		return nil, nil, err
	}
	erased, err = tree.ParseNHX(strings.NewReader(lines[1]))
	if err != nil {
		return nil, nil, err
	}
	return original, erased, nil
}

func nonEmptyLines(lines []string) (n int) {
	for _, l := range lines {
		if l != "" {
			n++
		}
	}
	return
}

// Reconcile sends the erased tree to the reconciler's stdin and decodes
// the reconciled tree from its single output line.
func (p *Protocol) Reconcile(ctx context.Context, erased *tree.Tree) (*tree.Tree, error) {
	stdout, _, err := p.runner().Run(ctx, p.Reconciler, nil, erased.String()+"\n")
	if err != nil {
		return nil, err
	}

	reconciled, err := tree.ParseNHX(strings.NewReader(stdout))
	if err != nil {
		return nil, err
	}
	return reconciled, nil
}

// Evaluate simulates one evolution, reconciles the erased tree and
// computes the requested metrics. Only the reconciliation call is
// timed; simulation time is excluded from the duration metric.
func (p *Protocol) Evaluate(ctx context.Context, metrics []Metric, req Request) (Result, error) {
	original, erased, err := p.Simulate(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reconciled, err := p.Reconcile(ctx, erased)
	duration := time.Since(start)
	if err != nil {
		return nil, err
	}

	res := make(Result, len(metrics))
	for _, m := range metrics {
		switch m {
		case MetricScoreDif:
			originalScore := DLScore(original)
			reconciledScore := DLScore(reconciled)
			if originalScore < reconciledScore {
				return nil, &InvariantError{
					OriginalScore:   originalScore,
					ReconciledScore: reconciledScore,
				}
			}
			res[m] = float64(originalScore - reconciledScore)
		case MetricDuration:
			res[m] = duration.Seconds()
		default:
			return nil, fmt.Errorf("unknown metric: %s", m)
		}
	}
	return res, nil
}

// DLScore returns the duplication-loss cost of a tree: the number of
// nodes annotated with a duplication or loss event.
func DLScore(t *tree.Tree) (score int) {
	for range t.Walker(func(n *tree.Node) bool {
		return n.Event == tree.EventDuplication || n.Event == tree.EventLoss
	}) {
		score++
	}
	return
}
