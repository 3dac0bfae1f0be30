package era5

import (
	"fmt"
	"maps"
	"slices"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/units"
)

type saveOptions struct {
	attrs map[string]string
}

// SaveOption configures Save.
type SaveOption func(*saveOptions)

// WithAttributes adds string attributes to every saved cube. The units and
// long_name attributes cannot be overridden.
func WithAttributes(attrs map[string]string) SaveOption {
	return func(o *saveOptions) {
		o.attrs = attrs
	}
}

// Save writes cubes and their coordinates to a NetCDF classic file. Cubes
// sharing a coordinate name must share the coordinate.
func Save(path string, cubes cube.List, opts ...SaveOption) error {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	extra := []string{"long_name", ""}
	for _, k := range slices.Sorted(maps.Keys(o.attrs)) {
		if k == "units" || k == "long_name" {
			continue
		}
		extra = append(extra, k, o.attrs[k])
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	written := make(map[string]*cube.Coord)
	for _, c := range cubes {
		extra[1] = c.Name()
		if err := saveCube(w, c, written, extra); err != nil {
			w.Close()
			return fmt.Errorf("cannot save cube %q: %w", c.Name(), err)
		}
	}
	return w.Close()
}

func saveCube(w api.Writer, c *cube.Cube, written map[string]*cube.Coord, extra []string) error {
	dims := make([]string, 0, c.Ndim())
	for _, co := range c.Coords() {
		dims = append(dims, co.Name)
		if prev, ok := written[co.Name]; ok {
			if !prev.Equal(co) {
				return fmt.Errorf("%w: coordinate %q differs from the one already written", cube.ErrCoordMismatch, co.Name)
			}
			continue
		}
		if err := saveCoord(w, co); err != nil {
			return err
		}
		written[co.Name] = co
	}
	attrs, err := attributes(c.Units(), extra...)
	if err != nil {
		return err
	}
	return w.AddVar(c.Name(), api.Variable{
		Values:     nest(c.Elements(), c.Shape()),
		Dimensions: dims,
		Attributes: attrs,
	})
}

func saveCoord(w api.Writer, co *cube.Coord) error {
	var extra []string
	if co.Axis != "" {
		extra = append(extra, "axis", co.Axis)
	}
	if co.HasBounds() {
		bname := co.Name + "_bnds"
		extra = append(extra, "bounds", bname)
		flat := make([]float64, 0, 2*co.Len())
		for _, b := range co.Bounds {
			flat = append(flat, b[0], b[1])
		}
		if err := w.AddVar(bname, api.Variable{
			Values:     nest(flat, []int{co.Len(), 2}),
			Dimensions: []string{co.Name, "bnds"},
		}); err != nil {
			return err
		}
	}
	attrs, err := attributes(co.Units, extra...)
	if err != nil {
		return err
	}
	return w.AddVar(co.Name, api.Variable{
		Values:     append([]float64(nil), co.Points...),
		Dimensions: []string{co.Name},
		Attributes: attrs,
	})
}

// attributes builds the attribute map of a variable from its units and
// extra key/value pairs.
func attributes(u units.Unit, kv ...string) (api.AttributeMap, error) {
	keys := []string{"units"}
	vals := map[string]any{"units": u.String()}
	for i := 0; i+1 < len(kv); i += 2 {
		keys = append(keys, kv[i])
		vals[kv[i]] = kv[i+1]
	}
	return util.NewOrderedMap(keys, vals)
}
