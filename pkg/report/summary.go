// Package report summarises simulation vectors and renders model state for
// terminals.
package report

import (
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dd0wney/cluso-fair/pkg/fair"
)

// DefaultQuantiles are reported when Summarize is given none.
var DefaultQuantiles = []float64{0.05, 0.5, 0.95}

// Quantile is the value at cumulative probability P.
type Quantile struct {
	P     float64 `json:"p"`
	Value float64 `json:"value"`
}

// Summary describes one simulation vector.
type Summary struct {
	Name      string     `json:"name"`
	Count     int        `json:"count"`
	Mean      float64    `json:"mean"`
	Stdev     float64    `json:"stdev"`
	Min       float64    `json:"min"`
	Max       float64    `json:"max"`
	Quantiles []Quantile `json:"quantiles,omitempty"`
}

// Summarize computes the moments, range and empirical quantiles of vec.
// ps default to DefaultQuantiles; values outside [0, 1] are skipped.
func Summarize(name string, vec []float64, ps ...float64) Summary {
	s := Summary{Name: name, Count: len(vec)}
	if len(vec) == 0 {
		return s
	}
	s.Mean, s.Stdev = stat.MeanStdDev(vec, nil)
	if len(vec) < 2 {
		s.Stdev = 0
	}
	s.Min = floats.Min(vec)
	s.Max = floats.Max(vec)

	if len(ps) == 0 {
		ps = DefaultQuantiles
	}
	sorted := slices.Clone(vec)
	slices.Sort(sorted)
	for _, p := range ps {
		if p < 0 || p > 1 {
			continue
		}
		s.Quantiles = append(s.Quantiles, Quantile{P: p, Value: stat.Quantile(p, stat.Empirical, sorted, nil)})
	}
	return s
}

// SummarizeResults summarises every column of results. Columns named in
// order come first, in that order; without order the taxonomy order is used.
// Remaining columns follow sorted by name.
func SummarizeResults(results fair.Results, order ...string) []Summary {
	if len(order) == 0 {
		for _, f := range fair.Factors() {
			order = append(order, f.String())
		}
	}
	var names []string
	seen := make(map[string]bool, len(results))
	for _, name := range order {
		if _, ok := results[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range results {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	names = append(names, rest...)

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		out = append(out, Summarize(name, results[name]))
	}
	return out
}
