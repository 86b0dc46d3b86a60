/*

Evosample evaluates metrics of a sample of simulated evolutions for
each value of a parameter over a given range. The actual simulation and
reconciliation are performed by two external programs; evosample drives
them, collects the per-trial metrics and writes the aggregated result
as JSON.

The basic usage looks like this:

	evosample -m scoredif --simulator build/simulate --reconciler build/super_reconciliation out.json

, this will evaluate the score difference for the default parameter
range. The swept parameter and its values can be changed:

	evosample -m duration -n event_depth -v 1,10 ...

To see all the options run:

	evosample --help

*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"

	"github.com/crobine/evosample/sample"
	"github.com/crobine/evosample/store"
	"github.com/crobine/evosample/subproc"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("evosample")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	// application
	app = kingpin.New("evosample", "sampling driver for simulated evolutions").Version(version)

	// output and metrics
	outputFileName = app.Arg("output", "path in which to create the output JSON file").Required().String()
	metrics        = app.Flag("metrics", "the metrics to evaluate (scoredif or duration)").
			Short('m').Required().Enums("scoredif", "duration")

	// external binaries
	simulatorPath  = app.Flag("simulator", "path of the evolution simulator binary").Required().String()
	reconcilerPath = app.Flag("reconciler", "path of the reconciliation binary").Required().String()

	// sampling
	sampleSize = app.Flag("sample-size", "size of the sample to take for each value").
			Short('S').Default("500").Int()
	paramName = app.Flag("param-name", "name of the variable simulation parameter").
			Short('n').Default("length").String()
	paramValues = app.Flag("param-values", "values for the parameter to take: "+
		"integer range arguments start,stop[,step], or an explicit "+
		"comma-separated list (e.g. 0.1,0.25,0.5)").
		Short('v').Default("1,5").String()
	jobs = app.Flag("jobs", "number of parallel workers to use "+
		"(if 0, uses one worker per available core)").
		Short('j').Default("0").Int()

	// base simulation parameters
	seed = app.Flag("seed", "seed for the simulator's random generator "+
		"(0 for system entropy)").Default("0").Int64()
	length     = app.Flag("length", "length of the ancestral synteny").Default("10").Int()
	eventDepth = app.Flag("depth", "maximum depth of duplication and speciation events").
			Default("5").Int()
	pDup = app.Flag("p-dup", "probability for an internal node to be a duplication").
		Default("0.5").Float64()
	pLoss = app.Flag("p-loss", "probability for a loss under a speciation node").
		Default("0.5").Float64()
	pLength = app.Flag("p-length", "parameter of the geometric distribution of loss lengths").
		Default("0.5").Float64()

	// technical
	timeout = app.Flag("timeout", "maximum running time for one external process call "+
		"(0 disables the bound)").Default("0").Duration()
	checkpointFileName = app.Flag("checkpoint", "checkpoint database; finished values are "+
		"saved there and reused when the sweep is restarted").String()

	// logging
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

// parseValues expands the swept value specification. Two or three
// integer fields are treated as range arguments start,stop[,step];
// anything else is an explicit list of values, which is the only way
// to sweep fractional parameters such as the probabilities.
func parseValues(spec string) ([]float64, error) {
	fields := strings.Split(spec, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}

	if len(fields) == 2 || len(fields) == 3 {
		args := make([]int, len(fields))
		isRange := true
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				isRange = false
				break
			}
			args[i] = v
		}
		if isRange {
			return expandRange(spec, args)
		}
	}

	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("bad parameter value %q", f)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no parameter values in %q", spec)
	}
	return values, nil
}

func expandRange(spec string, args []int) ([]float64, error) {
	start, stop, step := args[0], args[1], 1
	if len(args) == 3 {
		step = args[2]
	}
	if step == 0 {
		return nil, fmt.Errorf("range step cannot be zero")
	}

	var values []float64
	if step > 0 {
		for v := start; v < stop; v += step {
			values = append(values, float64(v))
		}
	} else {
		for v := start; v > stop; v += step {
			values = append(values, float64(v))
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty value range %q", spec)
	}
	return values, nil
}

func run() error {
	startTime := time.Now()

	values, err := parseValues(*paramValues)
	if err != nil {
		return err
	}

	requested := make([]sample.Metric, 0, len(*metrics))
	for _, m := range *metrics {
		requested = append(requested, sample.Metric(m))
	}

	base := sample.Request{
		Seed:                   *seed,
		Length:                 *length,
		EventDepth:             *eventDepth,
		DuplicationProbability: *pDup,
		LossProbability:        *pLoss,
		LossLengthRate:         *pLength,
	}

	protocol := &sample.Protocol{
		Simulator:  *simulatorPath,
		Reconciler: *reconcilerPath,
		Runner:     &subproc.Runner{Timeout: *timeout},
	}

	config := &sample.Config{
		SampleSize: *sampleSize,
		ParamName:  *paramName,
		Values:     values,
		Jobs:       *jobs,
		Metrics:    requested,
		Base:       base,
		Progress: func(done, total int) {
			log.Noticef("[%3d%%] %d/%d %s values evaluated",
				done*100/total, done, total, *paramName)
		},
	}

	if *checkpointFileName != "" {
		// Results depend on the binaries as much as on the
		// parameters, so both paths take part in the fingerprint.
		fingerprint := store.Fingerprint(
			strconv.Itoa(*sampleSize),
			*paramName,
			strings.Join(*metrics, ","),
			strings.Join(base.Args(), " "),
			*simulatorPath,
			*reconcilerPath,
		)
		cp, err := store.Open(*checkpointFileName, fingerprint)
		if err != nil {
			return fmt.Errorf("opening checkpoint database: %v", err)
		}
		defer cp.Close()

		config.Resume = func(value float64) ([]sample.Result, bool) {
			results, err := cp.Load(value)
			if err != nil {
				log.Error("Error reading checkpoint: ", err)
				return nil, false
			}
			if results == nil {
				return nil, false
			}
			log.Infof("Reusing checkpointed results for %s=%v", *paramName, value)
			return results, true
		}
		config.Completed = func(value float64, results []sample.Result) {
			// Best effort; a failed save only costs recomputation.
			cp.Save(value, results)
		}
	}

	set, err := sample.Sweep(context.Background(), protocol, config)
	if err != nil {
		return err
	}

	// JSON objects want string keys.
	out := make(map[string][]sample.Result, len(set))
	for value, results := range set {
		out[strconv.FormatFloat(value, 'g', -1, 64)] = results
	}
	j, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outputFileName, j, 0666); err != nil {
		return err
	}

	log.Noticef("Running time: %v", time.Since(startTime))
	return nil
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(level, "evosample")
	logging.SetLevel(level, "sample")
	logging.SetLevel(level, "subproc")
	logging.SetLevel(level, "store")

	log.Info(version)
	log.Info("Command line:", os.Args)
	log.Infof("Available cores: %d", runtime.GOMAXPROCS(0))

	if err := run(); err != nil {
		log.Fatal(err)
	}
}
