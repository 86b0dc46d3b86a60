// plotres draws a box plot of a metric distribution per swept
// parameter value from an evosample result file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	input := flag.String("in", "", "evosample result JSON file")
	output := flag.String("out", "metric.png", "output image (png, svg or pdf)")
	metric := flag.String("metric", "scoredif", "metric to plot")
	xlabel := flag.String("xlabel", "parameter value", "x axis label")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "no input file given")
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		panic(err)
	}
	var set map[string][]map[string]float64
	if err := json.Unmarshal(data, &set); err != nil {
		panic(err)
	}

	type column struct {
		value float64
		label string
	}
	columns := make([]column, 0, len(set))
	for label := range set {
		value, err := strconv.ParseFloat(label, 64)
		if err != nil {
			panic(err)
		}
		columns = append(columns, column{value, label})
	}
	sort.Slice(columns, func(i, j int) bool {
		return columns[i].value < columns[j].value
	})

	p := plot.New()
	p.Title.Text = *metric
	p.X.Label.Text = *xlabel
	p.Y.Label.Text = *metric

	names := make([]string, 0, len(columns))
	for i, col := range columns {
		values := make(plotter.Values, 0, len(set[col.label]))
		for _, res := range set[col.label] {
			v, ok := res[*metric]
			if !ok {
				panic(fmt.Sprintf("metric %q missing for value %s", *metric, col.label))
			}
			values = append(values, v)
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), values)
		if err != nil {
			panic(err)
		}
		p.Add(box)
		names = append(names, col.label)
	}
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, *output); err != nil {
		panic(err)
	}
}
