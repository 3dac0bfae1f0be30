package coord

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/units"
)

// Grid describes a regular latitude-longitude grid of the Unified Model.
//
// Type is one of "a" (main grid), "b" (staggered Lorenz wind grid), "cu"
// (staggered u wind grid) or "cv" (staggered v wind grid); empty means "a".
// The default layout is ENDGame, whose A grid starts half a cell away from
// the pole and the prime meridian. NewDynamics selects the older layout, in
// which the A and B grids swap.
type Grid struct {
	NLat        int    `validate:"required_without=NRes,omitempty,gt=0"`
	NLon        int    `validate:"required_without=NRes,omitempty,gt=0"`
	NRes        int    `validate:"omitempty,gt=1"`
	Type        string `validate:"omitempty,oneof=a b cu cv"`
	NewDynamics bool
	PM180       bool
}

var validate = validator.New()

// DummyCube returns a 2D (latitude, longitude) cube of zeros on the grid.
// A non-zero NRes gives the N-notation resolution and overrides NLat and
// NLon. Both coordinates carry bounds.
func DummyCube(g Grid) (*cube.Cube, error) {
	g.Type = strings.ToLower(g.Type)
	if err := validate.Struct(g); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	if g.Type == "" {
		g.Type = "a"
	}
	if g.NRes > 0 {
		g.NLon = 2 * g.NRes
		g.NLat = 3 * (g.NRes / 2)
	}

	var latShift, lonShift bool
	if g.NewDynamics {
		latShift = g.Type == "a" || g.Type == "cu"
		lonShift = g.Type == "a" || g.Type == "cv"
	} else {
		latShift = g.Type == "b" || g.Type == "cv"
		lonShift = g.Type == "b" || g.Type == "cu"
	}

	dlat := 180 / float64(g.NLat)
	var lats []float64
	if latShift {
		lats = linspace(-90, 90, g.NLat+1)
	} else {
		lats = linspace(-90+dlat/2, 90-dlat/2, g.NLat)
	}
	dlon := 360 / float64(g.NLon)
	var lons []float64
	if lonShift {
		lons = linspace(0, 360-dlon, g.NLon)
	} else {
		lons = linspace(dlon/2, 360-dlon/2, g.NLon)
	}
	if g.PM180 {
		floats.AddConst(-180, lons)
	}

	deg := units.MustParse("degrees")
	lat := cube.NewCoord("latitude", deg, lats)
	lon := cube.NewCoord("longitude", deg, lons)
	for _, co := range []*cube.Coord{lat, lon} {
		if co.Len() < 2 {
			continue
		}
		if err := co.GuessBounds(); err != nil {
			return nil, err
		}
	}
	return cube.FromElements("dummy_cube", units.Dimensionless, make([]float64, len(lats)*len(lons)), lat, lon)
}

func linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
