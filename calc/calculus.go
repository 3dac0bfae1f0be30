package calc

import (
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/integrate"

	"github.com/rtm0/aeolus/cube"
)

// Integrate integrates the cube along a coordinate with the trapezoidal
// rule. Descending coordinates give integrals of the opposite sign, as for
// an integral over pressure from the surface upwards.
func Integrate(c *cube.Cube, name string) (*cube.Cube, error) {
	co, err := c.Coord(name)
	if err != nil {
		return nil, err
	}
	if co.Len() < 2 {
		return nil, fmt.Errorf("cannot integrate along %q with %d point(s)", name, co.Len())
	}
	x := co.Points
	sign := 1.0
	if !sort.Float64sAreSorted(x) {
		x = slices.Clone(x)
		slices.Reverse(x)
		if !sort.Float64sAreSorted(x) {
			return nil, fmt.Errorf("coordinate %q is not monotonic", name)
		}
		sign = -1
	}
	f := make([]float64, len(x))
	res, err := c.Reduce(name, c.Units().Mul(co.Units), func(line []float64) float64 {
		copy(f, line)
		if sign < 0 {
			slices.Reverse(f)
		}
		return sign * integrate.Trapezoidal(x, f)
	})
	if err != nil {
		return nil, err
	}
	return res.WithName(fmt.Sprintf("integral_of_%s_wrt_%s", c.Name(), name)), nil
}
