// Package analysis provides the aggregators used to collapse cube axes.
//
// Aggregators skip missing values (NaN). A weighted aggregator accepts one
// weight per value; weights are dropped together with missing values.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rtm0/aeolus/units"
)

// ErrUnknownAggregator is returned by Lookup for names not in the registry.
var ErrUnknownAggregator = errors.New("unknown aggregator")

// Aggregator reduces a set of values to a single value.
type Aggregator interface {
	// Name is the cell method recorded on collapsed cubes.
	Name() string
	// Weighted reports whether Aggregate honours weights.
	Weighted() bool
	// Aggregate reduces xs. ws is nil or has the same length as xs.
	Aggregate(xs, ws []float64) float64
	// Units returns the units of the result given the units of the input.
	Units(u units.Unit) units.Unit
}

type aggregator struct {
	name     string
	weighted bool
	fn       func(xs, ws []float64) float64
	units    func(units.Unit) units.Unit
}

func (a *aggregator) Name() string   { return a.name }
func (a *aggregator) Weighted() bool { return a.weighted }

func (a *aggregator) Aggregate(xs, ws []float64) float64 {
	if !a.weighted {
		ws = nil
	}
	xs, ws = dropMissing(xs, ws)
	if len(xs) == 0 {
		return math.NaN()
	}
	return a.fn(xs, ws)
}

func (a *aggregator) Units(u units.Unit) units.Unit {
	if a.units == nil {
		return u
	}
	return a.units(u)
}

func dropMissing(xs, ws []float64) ([]float64, []float64) {
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			n++
		}
	}
	if n == len(xs) {
		return xs, ws
	}
	cxs := make([]float64, 0, n)
	var cws []float64
	if ws != nil {
		cws = make([]float64, 0, n)
	}
	for i, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		cxs = append(cxs, x)
		if ws != nil {
			cws = append(cws, ws[i])
		}
	}
	return cxs, cws
}

var (
	Mean = &aggregator{name: "mean", weighted: true, fn: func(xs, ws []float64) float64 {
		return stat.Mean(xs, ws)
	}}
	Sum = &aggregator{name: "sum", weighted: true, fn: func(xs, ws []float64) float64 {
		if ws == nil {
			return floats.Sum(xs)
		}
		return floats.Dot(xs, ws)
	}}
	Min = &aggregator{name: "minimum", fn: func(xs, _ []float64) float64 {
		return floats.Min(xs)
	}}
	Max = &aggregator{name: "maximum", fn: func(xs, _ []float64) float64 {
		return floats.Max(xs)
	}}
	Median = &aggregator{name: "median", fn: func(xs, _ []float64) float64 {
		return quantile(xs, 0.5)
	}}
	StdDev = &aggregator{name: "standard_deviation", fn: func(xs, _ []float64) float64 {
		return stat.StdDev(xs, nil)
	}}
	Variance = &aggregator{
		name: "variance",
		fn: func(xs, _ []float64) float64 {
			return stat.Variance(xs, nil)
		},
		units: func(u units.Unit) units.Unit { return u.Pow(2) },
	}
	RMS = &aggregator{name: "root_mean_square", weighted: true, fn: func(xs, ws []float64) float64 {
		sq := make([]float64, len(xs))
		floats.MulTo(sq, xs, xs)
		return math.Sqrt(stat.Mean(sq, ws))
	}}
)

// Percentile returns an unweighted aggregator computing the p-th percentile
// (0 <= p <= 100), interpolating linearly between the closest ranks.
func Percentile(p float64) Aggregator {
	return &aggregator{name: "percentile", fn: func(xs, _ []float64) float64 {
		return quantile(xs, p/100)
	}}
}

// quantile interpolates the sorted sample at rank (n-1)*q.
func quantile(xs []float64, q float64) float64 {
	sorted := stats.Sample{Xs: xs}.Copy().Sort().Xs
	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	hi := math.Ceil(h)
	x := sorted[int(lo)]
	return x + (h-lo)*(sorted[int(hi)]-x)
}

var registry = map[string]Aggregator{
	"MEAN":     Mean,
	"SUM":      Sum,
	"MIN":      Min,
	"MAX":      Max,
	"MEDIAN":   Median,
	"STD_DEV":  StdDev,
	"VARIANCE": Variance,
	"RMS":      RMS,
}

// Lookup resolves a case-insensitive aggregator name. Percentiles are
// spelled "p" followed by the percent, e.g. "p25".
func Lookup(name string) (Aggregator, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if a, ok := registry[key]; ok {
		return a, nil
	}
	if rest, ok := strings.CutPrefix(key, "P"); ok {
		p, err := strconv.ParseFloat(rest, 64)
		if err == nil && p >= 0 && p <= 100 {
			return Percentile(p), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAggregator, name)
}
