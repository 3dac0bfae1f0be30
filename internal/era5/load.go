// Package era5 reads and writes gridded NetCDF datasets such as ERA5
// reanalysis downloads.
package era5

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/units"
)

// Load reads the data variables of a NetCDF file as cubes. When names are
// given, only variables whose variable name or cube name is listed are
// returned.
func Load(path string, names ...string) (cube.List, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer nc.Close()

	l := newLoader(nc)
	auxiliary := make(map[string]bool)
	for _, name := range nc.ListVariables() {
		v, err := l.variable(name)
		if err != nil {
			return nil, err
		}
		if isCoordVar(name, v.Dimensions) {
			auxiliary[name] = true
		}
		if b := attrString(v.Attributes, "bounds"); b != "" {
			auxiliary[b] = true
		}
	}

	var cubes cube.List
	for _, name := range nc.ListVariables() {
		if auxiliary[name] {
			continue
		}
		v, _ := l.variable(name)
		cn := cubeName(name, v.Attributes)
		if len(names) > 0 && !slices.Contains(names, name) && !slices.Contains(names, cn) {
			continue
		}
		c, err := l.cube(name, v)
		if errors.Is(err, errNotNumeric) {
			slog.Debug("Skipping variable", "var", name, "err", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		cubes = append(cubes, c)
	}
	return cubes, nil
}

func isCoordVar(name string, dims []string) bool {
	return len(dims) == 1 && dims[0] == name
}

// loader caches variables and coordinates read from one file.
type loader struct {
	nc     api.Group
	vars   map[string]*api.Variable
	coords map[string]*cube.Coord
}

func newLoader(nc api.Group) *loader {
	return &loader{
		nc:     nc,
		vars:   make(map[string]*api.Variable),
		coords: make(map[string]*cube.Coord),
	}
}

func (l *loader) variable(name string) (*api.Variable, error) {
	if v, ok := l.vars[name]; ok {
		return v, nil
	}
	v, err := l.nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("cannot read variable %q: %w", name, err)
	}
	l.vars[name] = v
	return v, nil
}

func (l *loader) cube(name string, v *api.Variable) (*cube.Cube, error) {
	vals, shape, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}
	if len(shape) != len(v.Dimensions) {
		return nil, fmt.Errorf("%d dimensions for values of rank %d", len(v.Dimensions), len(shape))
	}
	unpack(vals, v.Attributes)
	coords := make([]*cube.Coord, len(shape))
	for i, dim := range v.Dimensions {
		if coords[i], err = l.coord(dim, shape[i]); err != nil {
			return nil, err
		}
	}
	return cube.FromElements(cubeName(name, v.Attributes), parseUnits(name, v.Attributes), vals, coords...)
}

// coord returns the coordinate of a dimension of length n. Dimensions
// without a coordinate variable get index points.
func (l *loader) coord(dim string, n int) (*cube.Coord, error) {
	if co, ok := l.coords[dim]; ok {
		if co.Len() != n {
			return nil, fmt.Errorf("dimension %q has length %d, want %d", dim, n, co.Len())
		}
		return co, nil
	}
	if !slices.Contains(l.nc.ListVariables(), dim) {
		points := make([]float64, n)
		for i := range points {
			points[i] = float64(i)
		}
		co := cube.NewCoord(dim, units.Dimensionless, points)
		l.coords[dim] = co
		return co, nil
	}
	v, err := l.variable(dim)
	if err != nil {
		return nil, err
	}
	points, _, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("coordinate %q: %w", dim, err)
	}
	if len(points) != n {
		return nil, fmt.Errorf("coordinate %q has %d points, want %d", dim, len(points), n)
	}
	unpack(points, v.Attributes)
	co := cube.NewCoord(dim, parseUnits(dim, v.Attributes), points)
	co.Axis = attrString(v.Attributes, "axis")
	if b := attrString(v.Attributes, "bounds"); b != "" {
		if co.Bounds, err = l.bounds(b, n); err != nil {
			return nil, fmt.Errorf("coordinate %q: %w", dim, err)
		}
	}
	l.coords[dim] = co
	return co, nil
}

func (l *loader) bounds(name string, n int) ([][2]float64, error) {
	v, err := l.variable(name)
	if err != nil {
		return nil, err
	}
	vals, shape, err := flatten(v.Values)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 || shape[0] != n || shape[1] != 2 {
		return nil, fmt.Errorf("bounds %q have shape %v, want [%d 2]", name, shape, n)
	}
	b := make([][2]float64, n)
	for i := range b {
		b[i] = [2]float64{vals[2*i], vals[2*i+1]}
	}
	return b, nil
}
