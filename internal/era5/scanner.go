package era5

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
	"github.com/rtm0/aeolus/subset"
	"github.com/rtm0/aeolus/units"
)

// Scanner reads a variable from a file one time step at a time.
type Scanner struct {
	nc       api.Group
	variable string
	name     string
	units    units.Unit
	vg       api.VarGetter
	attrs    api.AttributeMap
	dims     []string
	coords   []*cube.Coord // without the time coordinate
	ts       []int64
	pos      int
	cube     *cube.Cube
	err      error
}

// NewScanner creates a scanner over variable, whose first dimension must be
// the time coordinate of m.
func NewScanner(filePath, variable string, m model.Model) (*Scanner, error) {
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	s, err := newScanner(nc, variable, m)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

func newScanner(nc api.Group, variable string, m model.Model) (*Scanner, error) {
	vg, err := nc.GetVarGetter(variable)
	if err != nil {
		return nil, fmt.Errorf("cannot read variable %q: %w", variable, err)
	}
	dims := vg.Dimensions()
	shape := vg.Shape()
	if len(dims) == 0 || dims[0] != m.T {
		return nil, fmt.Errorf("variable %q has dimensions %v; the first one must be %q", variable, dims, m.T)
	}

	l := newLoader(nc)
	tc, err := l.coord(dims[0], int(shape[0]))
	if err != nil {
		return nil, err
	}
	s := &Scanner{
		nc:       nc,
		variable: variable,
		name:     cubeName(variable, vg.Attributes()),
		units:    parseUnits(variable, vg.Attributes()),
		vg:       vg,
		attrs:    vg.Attributes(),
		dims:     dims,
		ts:       make([]int64, tc.Len()),
	}
	dates, err := subset.Dates(tc)
	if err != nil {
		return nil, err
	}
	for i, d := range dates {
		s.ts[i] = d.UnixMilli()
	}
	for i, dim := range dims[1:] {
		co, err := l.coord(dim, int(shape[i+1]))
		if err != nil {
			return nil, err
		}
		s.coords = append(s.coords, co)
	}
	return s, nil
}

// Close closes the scanner.
func (s *Scanner) Close() {
	s.nc.Close()
}

// Summary returns the summary information about the dataset suitable for
// logging.
func (s *Scanner) Summary() []any {
	kv := []any{
		"var", s.variable,
		"name", s.name,
		"dims", s.dims,
		"steps", len(s.ts),
	}
	for _, co := range s.coords {
		kv = append(kv, co.Name+"Cnt", co.Len())
	}
	return kv
}

// Steps returns the number of time steps within the dataset.
func (s *Scanner) Steps() int {
	return len(s.ts)
}

// Scan reads the next time step.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.pos >= len(s.ts) {
		return false
	}
	begin := int64(s.pos)
	v, err := s.vg.GetSlice(begin, begin+1)
	if err != nil {
		s.err = fmt.Errorf("cannot read step %d of %q: %w", s.pos, s.variable, err)
		return false
	}
	vals, _, err := flatten(v)
	if err != nil {
		s.err = fmt.Errorf("variable %q: %w", s.variable, err)
		return false
	}
	unpack(vals, s.attrs)
	c, err := cube.FromElements(s.name, s.units, vals, s.coords...)
	if err != nil {
		s.err = err
		return false
	}
	s.cube = c
	s.pos++
	return true
}

// Cube returns the time step read by the last Scan.
func (s *Scanner) Cube() *cube.Cube {
	return s.cube
}

// Timestamp returns the time of the last scanned step in unix milliseconds.
func (s *Scanner) Timestamp() int64 {
	if s.pos == 0 {
		return 0
	}
	return s.ts[s.pos-1]
}

// Err returns the first error encountered by Scan.
func (s *Scanner) Err() error {
	return s.err
}
