package cube

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/aeolus/units"
)

const coordTolerance = 1e-10

// Coord is a named axis of a cube. Bounds, when present, hold the lower and
// upper edge of every cell.
type Coord struct {
	Name   string
	Axis   string // X, Y, Z, T or empty to guess from the name
	Points []float64
	Bounds [][2]float64
	Units  units.Unit
}

// NewCoord creates a coordinate without bounds.
func NewCoord(name string, u units.Unit, points []float64) *Coord {
	return &Coord{Name: name, Points: points, Units: u}
}

// Len returns the number of points.
func (c *Coord) Len() int {
	return len(c.Points)
}

// HasBounds reports whether cell bounds are attached.
func (c *Coord) HasBounds() bool {
	return len(c.Bounds) > 0
}

// AxisName returns the explicit axis or the one guessed from the name and
// units.
func (c *Coord) AxisName() string {
	if c.Axis != "" {
		return strings.ToUpper(c.Axis)
	}
	if _, _, ok := c.Units.TimeReference(); ok {
		return "T"
	}
	return GuessAxis(c.Name)
}

// GuessAxis maps common coordinate names to axis letters.
func GuessAxis(name string) string {
	n := strings.ToLower(name)
	switch {
	case n == "x" || n == "lon" || strings.HasSuffix(n, "longitude"):
		return "X"
	case n == "y" || n == "lat" || strings.HasSuffix(n, "latitude"):
		return "Y"
	case n == "t" || n == "time" || strings.HasSuffix(n, "_time"):
		return "T"
	case n == "z", strings.Contains(n, "height"), strings.Contains(n, "pressure"),
		strings.Contains(n, "level"), strings.Contains(n, "depth"),
		strings.Contains(n, "altitude"), strings.Contains(n, "sigma"):
		return "Z"
	}
	return ""
}

// GuessBounds sets bounds halfway between neighbouring points, extrapolating
// half a step beyond the first and last points.
func (c *Coord) GuessBounds() error {
	n := len(c.Points)
	if n < 2 {
		return fmt.Errorf("cannot guess bounds for coordinate %q with %d point(s)", c.Name, n)
	}
	b := make([][2]float64, n)
	for i := 0; i < n; i++ {
		var lo, hi float64
		if i == 0 {
			lo = c.Points[0] - (c.Points[1]-c.Points[0])/2
		} else {
			lo = (c.Points[i-1] + c.Points[i]) / 2
		}
		if i == n-1 {
			hi = c.Points[n-1] + (c.Points[n-1]-c.Points[n-2])/2
		} else {
			hi = (c.Points[i] + c.Points[i+1]) / 2
		}
		b[i] = [2]float64{lo, hi}
	}
	c.Bounds = b
	return nil
}

// Widths returns upper minus lower bound for each cell.
func (c *Coord) Widths() []float64 {
	w := make([]float64, len(c.Bounds))
	for i, b := range c.Bounds {
		w[i] = b[1] - b[0]
	}
	return w
}

// Copy returns a deep copy.
func (c *Coord) Copy() *Coord {
	cp := *c
	cp.Points = append([]float64(nil), c.Points...)
	if c.Bounds != nil {
		cp.Bounds = append([][2]float64(nil), c.Bounds...)
	}
	return &cp
}

// Equal reports whether two coordinates have the same name, units, points
// and bounds.
func (c *Coord) Equal(o *Coord) bool {
	if c.Name != o.Name || !c.Units.Equal(o.Units) || len(c.Points) != len(o.Points) {
		return false
	}
	if !floats.EqualApprox(c.Points, o.Points, coordTolerance) {
		return false
	}
	if c.HasBounds() != o.HasBounds() {
		return false
	}
	for i := range c.Bounds {
		if !floats.EqualApprox(c.Bounds[i][:], o.Bounds[i][:], coordTolerance) {
			return false
		}
	}
	return true
}

func (c *Coord) subset(idx []int) *Coord {
	cp := *c
	cp.Points = make([]float64, len(idx))
	for i, j := range idx {
		cp.Points[i] = c.Points[j]
	}
	if c.HasBounds() {
		cp.Bounds = make([][2]float64, len(idx))
		for i, j := range idx {
			cp.Bounds[i] = c.Bounds[j]
		}
	}
	return &cp
}
