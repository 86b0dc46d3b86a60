package sample

import (
	"fmt"
	"strconv"
)

// Parameter names accepted by Request.Override.
const (
	ParamSeed                   = "seed"
	ParamLength                 = "length"
	ParamSyntenySize            = "synteny_size"
	ParamEventDepth             = "event_depth"
	ParamDuplicationProbability = "duplication_probability"
	ParamLossProbability        = "loss_probability"
	ParamLossLengthRate         = "loss_length_rate"
)

// Request holds the generation parameters for one simulated evolution.
// A request is immutable per trial; the sweep driver overrides a single
// field per swept value.
type Request struct {
	// Seed for the simulator's pseudo-random generator; 0 asks the
	// simulator to seed itself from the system.
	Seed int64
	// Length of the ancestral synteny (number of gene families).
	Length int
	// Maximum depth of duplication and speciation events.
	EventDepth int
	// Probability for any given internal node to be a duplication.
	DuplicationProbability float64
	// Probability for a loss under any given speciation node.
	LossProbability float64
	// Parameter of the geometric distribution of loss lengths.
	LossLengthRate float64
}

// DefaultRequest returns a request with the documented defaults.
func DefaultRequest() Request {
	return Request{
		Seed:                   0,
		Length:                 10,
		EventDepth:             5,
		DuplicationProbability: 0.5,
		LossProbability:        0.5,
		LossLengthRate:         0.5,
	}
}

// Override returns a copy of the request with one named parameter
// replaced. Integer parameters are truncated from the value.
func (r Request) Override(param string, value float64) (Request, error) {
	switch param {
	case ParamSeed:
		r.Seed = int64(value)
	case ParamLength, ParamSyntenySize:
		r.Length = int(value)
	case ParamEventDepth:
		r.EventDepth = int(value)
	case ParamDuplicationProbability:
		r.DuplicationProbability = value
	case ParamLossProbability:
		r.LossProbability = value
	case ParamLossLengthRate:
		r.LossLengthRate = value
	default:
		return r, fmt.Errorf("unknown parameter name: %s", param)
	}
	return r, nil
}

// Args returns the request as the simulator's positional arguments, in
// the order the simulator expects: seed, length, event depth,
// duplication probability, loss probability, loss length rate.
func (r Request) Args() []string {
	return []string{
		strconv.FormatInt(r.Seed, 10),
		strconv.Itoa(r.Length),
		strconv.Itoa(r.EventDepth),
		strconv.FormatFloat(r.DuplicationProbability, 'g', -1, 64),
		strconv.FormatFloat(r.LossProbability, 'g', -1, 64),
		strconv.FormatFloat(r.LossLengthRate, 'g', -1, 64),
	}
}
