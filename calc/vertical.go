package calc

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/aeolus/analysis"
	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
)

// ErrUnrecognisedWeighting is returned for Weighting values VerticalMean
// does not handle.
var ErrUnrecognisedWeighting = errors.New("unrecognised type of weighting")

// Weighting selects how VerticalMean weights the vertical levels. A nil
// Weighting means no weights.
type Weighting interface {
	weighting()
}

// ByCoordName weights by the points of the named coordinate of the cube.
type ByCoordName string

// ByCoord weights by the points of a coordinate.
type ByCoord struct {
	Coord *cube.Coord
}

// ByCube computes the weighted mean as the integral of the product of the
// cube and the weight cube divided by the integral of the weight cube.
type ByCube struct {
	Cube *cube.Cube
}

func (ByCoordName) weighting() {}
func (ByCoord) weighting()     {}
func (ByCube) weighting()      {}

// VerticalMean averages the cube over its vertical coordinate.
func VerticalMean(c *cube.Cube, m model.Model, w Weighting) (*cube.Cube, error) {
	z := m.Z
	var res *cube.Cube
	var err error
	switch w := w.(type) {
	case nil:
		res, err = c.Collapsed([]string{z}, analysis.Mean)
	case ByCoordName:
		var co *cube.Coord
		if co, err = c.Coord(string(w)); err != nil {
			return nil, err
		}
		res, err = c.Collapsed([]string{z}, analysis.Mean, cube.Weights(pointsArray(co)))
	case ByCoord:
		var co *cube.Coord
		if co, err = c.Coord(w.Coord.Name); err != nil {
			return nil, err
		}
		if !co.Equal(w.Coord) {
			return nil, fmt.Errorf("%w: weighting coordinate %q differs from the one of cube %q", cube.ErrCoordMismatch, co.Name, c.Name())
		}
		res, err = c.Collapsed([]string{z}, analysis.Mean, cube.Weights(pointsArray(co)))
	case ByCube:
		res, err = integralMean(c, w.Cube, z)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnrecognisedWeighting, w)
	}
	if err != nil {
		return nil, err
	}
	return res.WithName("vertical_mean_of_" + c.Name()), nil
}

func pointsArray(co *cube.Coord) *sparse.DenseArray {
	a := sparse.ZerosDense(co.Len())
	copy(a.Elements, co.Points)
	return a
}

// integralMean returns ∫(c·w)dz / ∫w dz. Bounds on z are dropped from both
// inputs so that differing bounds do not prevent the multiplication.
func integralMean(c, w *cube.Cube, z string) (*cube.Cube, error) {
	a, err := c.WithoutBounds(z)
	if err != nil {
		return nil, err
	}
	b, err := w.WithoutBounds(z)
	if err != nil {
		return nil, err
	}
	prod, err := b.Mul(a)
	if err != nil {
		return nil, err
	}
	num, err := Integrate(prod, z)
	if err != nil {
		return nil, err
	}
	den, err := Integrate(w, z)
	if err != nil {
		return nil, err
	}
	return num.Div(den)
}

// Cumsum returns the cumulative sum along an axis. axis is a model role
// (t, z, y, x) or, when the model does not resolve it, a cube axis letter.
// With axisWeights each value is first multiplied by the width of its cell,
// guessing bounds if needed. Missing values count as zero.
func Cumsum(c *cube.Cube, axis string, axisWeights bool, m model.Model) (*cube.Cube, error) {
	co, err := axisCoord(c, axis, m)
	if err != nil {
		return nil, err
	}
	co = co.Copy()
	src := c
	u := c.Units()
	if axisWeights {
		if !co.HasBounds() {
			if err := co.GuessBounds(); err != nil {
				return nil, err
			}
		}
		dim, _ := c.CoordDim(co.Name)
		w, err := cube.BroadcastToShape(co.Widths(), c.Shape(), []int{dim})
		if err != nil {
			return nil, err
		}
		if src, err = c.MulArray(w); err != nil {
			return nil, err
		}
		u = u.Mul(co.Units)
	}
	res, err := src.MapAxis(co.Name, nanCumsum)
	if err != nil {
		return nil, err
	}
	return res.WithUnits(u).WithName(fmt.Sprintf("cumulative_sum_of_%s_along_%s", c.Name(), axis)), nil
}

// VerticalCumsum is Cumsum along the vertical axis.
func VerticalCumsum(c *cube.Cube, axisWeights bool, m model.Model) (*cube.Cube, error) {
	res, err := Cumsum(c, "z", axisWeights, m)
	if err != nil {
		return nil, err
	}
	return res.WithName("vertical_cumulative_sum_of_" + c.Name()), nil
}

func axisCoord(c *cube.Cube, axis string, m model.Model) (*cube.Coord, error) {
	if name, ok := m.Axis(axis); ok {
		if co, err := c.Coord(name); err == nil {
			return co, nil
		}
	}
	return c.CoordByAxis(axis)
}

func nanCumsum(line []float64) {
	for i, v := range line {
		if math.IsNaN(v) {
			line[i] = 0
		}
	}
	floats.CumSum(line, line)
}
