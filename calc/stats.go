// Package calc implements statistical reductions over cubes.
//
// Every function resolves coordinate names through a model.Model so the
// same code runs on datasets with different naming conventions.
package calc

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/aeolus/analysis"
	"github.com/rtm0/aeolus/coord"
	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
	"github.com/rtm0/aeolus/region"
	"github.com/rtm0/aeolus/subset"
)

// Spatial collapses the horizontal coordinates of the cube with the named
// aggregator (see analysis.Lookup). Horizontal bounds are guessed when
// missing; weighted aggregators then use normalized cell areas as weights.
// A cube already collapsed over both horizontal coordinates is returned
// unchanged with a warning.
func Spatial(c *cube.Cube, aggr string, m model.Model) (*cube.Cube, error) {
	agg, err := analysis.Lookup(aggr)
	if err != nil {
		return nil, err
	}
	if !c.HasCoord(m.X) && !c.HasCoord(m.Y) && collapsedOver(c, m.Y, m.X) {
		slog.Warn("Horizontal coordinates are already collapsed", "func", "Spatial", "cube", c.Name())
		return c, nil
	}
	c, err = coord.EnsureBounds(c, []string{"x", "y"}, m)
	if err != nil {
		return nil, err
	}
	var opts []cube.CollapseOption
	if agg.Weighted() && hasBounds(c, m.X, m.Y) {
		w, err := coord.AreaWeights(c, m, true)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cube.Weights(w))
	}
	return c.Collapsed([]string{m.Y, m.X}, agg, opts...)
}

// collapsedOver reports whether the cell methods of c cover every name.
func collapsedOver(c *cube.Cube, names ...string) bool {
	done := make(map[string]bool)
	for _, cm := range c.CellMethods() {
		for _, name := range cm.Coords {
			done[name] = true
		}
	}
	for _, name := range names {
		if !done[name] {
			return false
		}
	}
	return true
}

func hasBounds(c *cube.Cube, names ...string) bool {
	for _, name := range names {
		co, err := c.Coord(name)
		if err != nil || !co.HasBounds() {
			return false
		}
	}
	return true
}

// SpatialMean is the area-weighted horizontal mean.
func SpatialMean(c *cube.Cube, m model.Model) (*cube.Cube, error) {
	return Spatial(c, "mean", m)
}

// SpatialQuartiles returns the 25th and 75th percentiles over the horizontal
// coordinates. No area weights are applied.
func SpatialQuartiles(c *cube.Cube, m model.Model) (q25, q75 *cube.Cube, err error) {
	slog.Warn("No weights are applied", "func", "SpatialQuartiles", "cube", c.Name())
	coords := []string{m.Y, m.X}
	if q25, err = c.Collapsed(coords, analysis.Percentile(25)); err != nil {
		return nil, nil, err
	}
	if q75, err = c.Collapsed(coords, analysis.Percentile(75)); err != nil {
		return nil, nil, err
	}
	return q25, q75, nil
}

// MinMaxDiff returns the spatial maximum minus the spatial minimum of the
// named cube.
func MinMaxDiff(cubes cube.List, name string, m model.Model) (*cube.Cube, error) {
	c, err := cubes.ExtractStrict(name)
	if err != nil {
		return nil, err
	}
	lo, err := Spatial(c, "min", m)
	if err != nil {
		return nil, err
	}
	hi, err := Spatial(c, "max", m)
	if err != nil {
		return nil, err
	}
	diff, err := hi.Sub(lo)
	if err != nil {
		return nil, err
	}
	return diff.WithName(name + "_difference"), nil
}

// RegionMeanDiff returns the spatial mean of the named cube over region a
// minus its mean over region b.
func RegionMeanDiff(cubes cube.List, name string, a, b region.Region, m model.Model) (*cube.Cube, error) {
	c, err := cubes.ExtractStrict(name)
	if err != nil {
		return nil, err
	}
	meanA, err := regionMean(c, a, m)
	if err != nil {
		return nil, err
	}
	meanB, err := regionMean(c, b, m)
	if err != nil {
		return nil, err
	}
	diff, err := meanA.Sub(meanB)
	if err != nil {
		return nil, err
	}
	return diff.WithName(fmt.Sprintf("%s_mean_diff_%s_%s", name, a, b)), nil
}

func regionMean(c *cube.Cube, r region.Region, m model.Model) (*cube.Cube, error) {
	sub, err := c.Extract(r.Constraint(m))
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", r, err)
	}
	return SpatialMean(sub, m)
}

// MeridionalMean averages over latitude with cos(latitude) weights.
func MeridionalMean(c *cube.Cube, m model.Model) (*cube.Cube, error) {
	lat, err := c.Coord(m.Y)
	if err != nil {
		return nil, err
	}
	dim, _ := c.CoordDim(m.Y)
	coslat := make([]float64, lat.Len())
	for i, p := range lat.Points {
		coslat[i] = math.Cos(p * math.Pi / 180)
	}
	w, err := cube.BroadcastToShape(coslat, c.Shape(), []int{dim})
	if err != nil {
		return nil, err
	}
	weighted, err := c.MulArray(w)
	if err != nil {
		return nil, err
	}
	sum, err := weighted.Collapsed([]string{m.Y}, analysis.Sum)
	if err != nil {
		return nil, err
	}
	return sum.DivScalar(floats.Sum(coslat)), nil
}

// ZonalMean averages over longitude.
func ZonalMean(c *cube.Cube, m model.Model) (*cube.Cube, error) {
	return c.Collapsed([]string{m.X}, analysis.Mean)
}

// LastYearMean averages the cube over the last year of its time
// coordinate.
func LastYearMean(c *cube.Cube, m model.Model) (*cube.Cube, error) {
	last, err := subset.ExtractLastYear(c, m)
	if err != nil {
		return nil, err
	}
	return last.Collapsed([]string{m.T}, analysis.Mean)
}
