// Package cube implements a gridded data cube: an N-dimensional array of
// values with one named coordinate per axis, physical units and a name.
//
// Cubes are immutable by convention. Every operation returns a new cube; the
// array returned by Data and the coordinates returned by Coord must not be
// modified by callers. Missing values are stored as NaN.
package cube

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/sparse"

	"github.com/rtm0/aeolus/units"
)

var (
	ErrCoordNotFound = errors.New("coordinate not found")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrCoordMismatch = errors.New("coordinates do not match")
	ErrUnitMismatch  = errors.New("units do not match")
	ErrNoMatch       = errors.New("no values match the constraint")
)

// CellMethod records a collapse applied to a cube.
type CellMethod struct {
	Method string
	Coords []string
}

// Cube is a named N-dimensional array with a coordinate per axis.
type Cube struct {
	name        string
	units       units.Unit
	data        *sparse.DenseArray
	coords      []*Coord
	cellMethods []CellMethod
}

// New creates a cube. coords[i] describes axis i of data.
func New(name string, u units.Unit, data *sparse.DenseArray, coords ...*Coord) (*Cube, error) {
	if len(coords) != len(data.Shape) {
		return nil, fmt.Errorf("%w: %d coordinates for %d dimensions", ErrShapeMismatch, len(coords), len(data.Shape))
	}
	seen := make(map[string]bool, len(coords))
	for i, co := range coords {
		if co.Len() != data.Shape[i] {
			return nil, fmt.Errorf("%w: coordinate %q has %d points, dimension %d has length %d",
				ErrShapeMismatch, co.Name, co.Len(), i, data.Shape[i])
		}
		if co.HasBounds() && len(co.Bounds) != co.Len() {
			return nil, fmt.Errorf("%w: coordinate %q has %d bounds for %d points",
				ErrShapeMismatch, co.Name, len(co.Bounds), co.Len())
		}
		if seen[co.Name] {
			return nil, fmt.Errorf("duplicate coordinate %q", co.Name)
		}
		seen[co.Name] = true
	}
	return &Cube{name: name, units: u, data: data, coords: coords}, nil
}

// FromElements creates a cube whose shape is given by the coordinate lengths.
// values are in row-major order.
func FromElements(name string, u units.Unit, values []float64, coords ...*Coord) (*Cube, error) {
	shape := make([]int, len(coords))
	for i, co := range coords {
		shape[i] = co.Len()
	}
	data := newArray(shape)
	if len(values) != len(data.Elements) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(values), shape)
	}
	copy(data.Elements, values)
	return New(name, u, data, coords...)
}

// NewScalar creates a cube without dimensions holding a single value.
func NewScalar(name string, value float64, u units.Unit) *Cube {
	data := newArray(nil)
	data.Elements[0] = value
	return &Cube{name: name, units: u, data: data}
}

func newArray(shape []int) *sparse.DenseArray {
	if len(shape) == 0 {
		a := sparse.ZerosDense(1)
		a.Shape = nil
		return a
	}
	return sparse.ZerosDense(append([]int(nil), shape...)...)
}

// Name returns the variable name.
func (c *Cube) Name() string { return c.name }

// Units returns the units of the values.
func (c *Cube) Units() units.Unit { return c.units }

// Data returns the underlying array.
func (c *Cube) Data() *sparse.DenseArray { return c.data }

// Ndim returns the number of axes; scalars have none.
func (c *Cube) Ndim() int { return len(c.data.Shape) }

// Size returns the number of values.
func (c *Cube) Size() int { return len(c.data.Elements) }

// Coords returns the dimension coordinates in axis order.
func (c *Cube) Coords() []*Coord {
	return append([]*Coord(nil), c.coords...)
}

// CellMethods returns the collapses applied so far.
func (c *Cube) CellMethods() []CellMethod {
	return append([]CellMethod(nil), c.cellMethods...)
}

// Shape returns a copy of the axis lengths.
func (c *Cube) Shape() []int {
	return append([]int(nil), c.data.Shape...)
}

// Elements returns the values in row-major order.
func (c *Cube) Elements() []float64 {
	return c.data.Elements
}

func (c *Cube) HasCoord(name string) bool {
	_, err := c.CoordDim(name)
	return err == nil
}

// Value returns the value of a scalar cube, or NaN for cubes with
// dimensions.
func (c *Cube) Value() float64 {
	if c.Ndim() != 0 {
		return math.NaN()
	}
	return c.data.Elements[0]
}

// Coord returns the coordinate with the given name.
func (c *Cube) Coord(name string) (*Coord, error) {
	d, err := c.CoordDim(name)
	if err != nil {
		return nil, err
	}
	return c.coords[d], nil
}

// CoordDim returns the axis index of the named coordinate.
func (c *Cube) CoordDim(name string) (int, error) {
	for i, co := range c.coords {
		if co.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in cube %q", ErrCoordNotFound, name, c.name)
}

// CoordByAxis returns the coordinate on the given axis (X, Y, Z or T).
func (c *Cube) CoordByAxis(axis string) (*Coord, error) {
	axis = strings.ToUpper(axis)
	for _, co := range c.coords {
		if co.AxisName() == axis {
			return co, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s axis in cube %q", ErrCoordNotFound, axis, c.name)
}

func (c *Cube) shallow() *Cube {
	cp := *c
	cp.coords = append([]*Coord(nil), c.coords...)
	cp.cellMethods = append([]CellMethod(nil), c.cellMethods...)
	return &cp
}

// Copy returns a deep copy of the cube.
func (c *Cube) Copy() *Cube {
	cp := c.shallow()
	cp.data = newArray(c.data.Shape)
	copy(cp.data.Elements, c.data.Elements)
	for i, co := range cp.coords {
		cp.coords[i] = co.Copy()
	}
	return cp
}

// WithName returns a copy of the cube with a new name.
func (c *Cube) WithName(name string) *Cube {
	cp := c.shallow()
	cp.name = name
	return cp
}

// WithUnits returns a copy of the cube with new units.
func (c *Cube) WithUnits(u units.Unit) *Cube {
	cp := c.shallow()
	cp.units = u
	return cp
}

// WithData returns a copy of the cube holding data, which must have the
// cube's shape.
func (c *Cube) WithData(data *sparse.DenseArray) (*Cube, error) {
	if !sameShape(data.Shape, c.data.Shape) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, data.Shape, c.data.Shape)
	}
	cp := c.shallow()
	cp.data = data
	return cp, nil
}

// WithCoord returns a copy of the cube with the coordinate of the same name
// replaced by co.
func (c *Cube) WithCoord(co *Coord) (*Cube, error) {
	d, err := c.CoordDim(co.Name)
	if err != nil {
		return nil, err
	}
	if co.Len() != c.data.Shape[d] {
		return nil, fmt.Errorf("%w: coordinate %q has %d points, dimension has length %d",
			ErrShapeMismatch, co.Name, co.Len(), c.data.Shape[d])
	}
	cp := c.shallow()
	cp.coords[d] = co
	return cp, nil
}

// WithoutBounds returns a copy of the cube with the bounds of the named
// coordinate removed.
func (c *Cube) WithoutBounds(name string) (*Cube, error) {
	co, err := c.Coord(name)
	if err != nil {
		return nil, err
	}
	stripped := co.Copy()
	stripped.Bounds = nil
	return c.WithCoord(stripped)
}

func (c *Cube) String() string {
	dims := make([]string, len(c.coords))
	for i, co := range c.coords {
		dims[i] = fmt.Sprintf("%s: %d", co.Name, co.Len())
	}
	if len(dims) == 0 {
		return fmt.Sprintf("%s / (%s) (scalar cube)", c.name, c.units)
	}
	return fmt.Sprintf("%s / (%s) (%s)", c.name, c.units, strings.Join(dims, "; "))
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// eachIndex calls fn with every flat index of shape and its N-d index. idx is
// reused between calls.
func eachIndex(shape []int, fn func(flat int, idx []int)) {
	size := 1
	for _, n := range shape {
		size *= n
	}
	idx := make([]int, len(shape))
	for flat := 0; flat < size; flat++ {
		fn(flat, idx)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// BroadcastToShape expands values, laid out over the axes dims of shape, to
// the full shape.
func BroadcastToShape(values []float64, shape []int, dims []int) (*sparse.DenseArray, error) {
	want := 1
	for _, d := range dims {
		if d < 0 || d >= len(shape) {
			return nil, fmt.Errorf("%w: axis %d out of range for shape %v", ErrShapeMismatch, d, shape)
		}
		want *= shape[d]
	}
	if len(values) != want {
		return nil, fmt.Errorf("%w: cannot broadcast %d values over axes %v of shape %v",
			ErrShapeMismatch, len(values), dims, shape)
	}
	out := newArray(shape)
	eachIndex(shape, func(flat int, idx []int) {
		src := 0
		for _, d := range dims {
			src = src*shape[d] + idx[d]
		}
		out.Elements[flat] = values[src]
	})
	return out, nil
}

// List is a collection of cubes.
type List []*Cube

// ExtractStrict returns the only cube with the given name.
func (l List) ExtractStrict(name string) (*Cube, error) {
	var found *Cube
	for _, c := range l {
		if c.Name() != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("more than one cube named %q", name)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("no cube named %q", name)
	}
	return found, nil
}

// Names returns the cube names in order.
func (l List) Names() []string {
	names := make([]string, len(l))
	for i, c := range l {
		names[i] = c.Name()
	}
	return names
}

// Stack joins cubes sharing name, units and coordinates along a new leading
// axis described by co, which needs one point per cube.
func Stack(cubes List, co *Coord) (*Cube, error) {
	if len(cubes) == 0 {
		return nil, errors.New("no cubes to stack")
	}
	if co.Len() != len(cubes) {
		return nil, fmt.Errorf("%w: coordinate %q has %d points for %d cubes", ErrShapeMismatch, co.Name, co.Len(), len(cubes))
	}
	first := cubes[0]
	for _, c := range cubes[1:] {
		if c.name != first.name {
			return nil, fmt.Errorf("cannot stack cube %q with cube %q", c.name, first.name)
		}
		if !c.units.Equal(first.units) {
			return nil, fmt.Errorf("%w: %s and %s", ErrUnitMismatch, first.units, c.units)
		}
		if len(c.coords) != len(first.coords) {
			return nil, fmt.Errorf("%w: cube %q has %d dimensions, expected %d", ErrShapeMismatch, c.name, c.Ndim(), first.Ndim())
		}
		for i, fc := range first.coords {
			if !c.coords[i].Equal(fc) {
				return nil, fmt.Errorf("%w: coordinate %q of cube %q", ErrCoordMismatch, fc.Name, c.name)
			}
		}
	}
	data := newArray(append([]int{len(cubes)}, first.data.Shape...))
	n := first.Size()
	for i, c := range cubes {
		copy(data.Elements[i*n:], c.data.Elements)
	}
	res, err := New(first.name, first.units, data, append([]*Coord{co}, first.coords...)...)
	if err != nil {
		return nil, err
	}
	res.cellMethods = append([]CellMethod(nil), first.cellMethods...)
	return res, nil
}
