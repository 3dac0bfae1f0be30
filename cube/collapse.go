package cube

import (
	"errors"
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/rtm0/aeolus/analysis"
)

type collapseOptions struct {
	weights *sparse.DenseArray
}

// CollapseOption configures Collapsed.
type CollapseOption func(*collapseOptions)

// Weights passes weights to a weighted aggregator. w has either the shape of
// the cube or, when a single axis is collapsed, the length of that axis.
func Weights(w *sparse.DenseArray) CollapseOption {
	return func(o *collapseOptions) {
		o.weights = w
	}
}

// Collapsed reduces the named coordinates with agg. The result keeps every
// other axis unchanged and records a cell method.
func (c *Cube) Collapsed(names []string, agg analysis.Aggregator, opts ...CollapseOption) (*Cube, error) {
	var o collapseOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(names) == 0 {
		return nil, errors.New("no coordinates to collapse")
	}
	shape := c.data.Shape
	collapse := make([]bool, len(shape))
	var dims []int
	for _, name := range names {
		d, err := c.CoordDim(name)
		if err != nil {
			return nil, err
		}
		if !collapse[d] {
			dims = append(dims, d)
		}
		collapse[d] = true
	}

	var ws []float64
	if o.weights != nil {
		if !agg.Weighted() {
			return nil, fmt.Errorf("aggregator %q does not accept weights", agg.Name())
		}
		var err error
		if ws, err = c.expandWeights(o.weights, dims); err != nil {
			return nil, err
		}
	}

	var outShape []int
	var coords []*Coord
	for d, n := range shape {
		if !collapse[d] {
			outShape = append(outShape, n)
			coords = append(coords, c.coords[d])
		}
	}
	out := newArray(outShape)
	groups := make([][]float64, len(out.Elements))
	var wgroups [][]float64
	if ws != nil {
		wgroups = make([][]float64, len(out.Elements))
	}
	eachIndex(shape, func(flat int, idx []int) {
		r := 0
		for d, i := range idx {
			if !collapse[d] {
				r = r*shape[d] + i
			}
		}
		groups[r] = append(groups[r], c.data.Elements[flat])
		if ws != nil {
			wgroups[r] = append(wgroups[r], ws[flat])
		}
	})
	for r, xs := range groups {
		var w []float64
		if ws != nil {
			w = wgroups[r]
		}
		out.Elements[r] = agg.Aggregate(xs, w)
	}

	res := c.shallow()
	res.units = agg.Units(c.units)
	res.data = out
	res.coords = coords
	res.cellMethods = append(res.cellMethods, CellMethod{Method: agg.Name(), Coords: append([]string(nil), names...)})
	return res, nil
}

func (c *Cube) expandWeights(w *sparse.DenseArray, dims []int) ([]float64, error) {
	if sameShape(w.Shape, c.data.Shape) {
		return w.Elements, nil
	}
	if len(dims) == 1 && len(w.Shape) == 1 {
		b, err := BroadcastToShape(w.Elements, c.data.Shape, dims)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		return b.Elements, nil
	}
	return nil, fmt.Errorf("%w: weights of shape %v for cube of shape %v", ErrShapeMismatch, w.Shape, c.data.Shape)
}
