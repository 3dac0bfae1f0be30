package calc

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/aeolus/analysis"
	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
	"github.com/rtm0/aeolus/region"
	"github.com/rtm0/aeolus/units"
)

const tol = 1e-9

var um = model.UM

// newGrid returns a (time, latitude, longitude) cube with values produced
// by fn.
func newGrid(t *testing.T, name string, fn func(ti, yi, xi int) float64) *cube.Cube {
	t.Helper()
	deg := units.MustParse("degrees")
	lats := []float64{-60, 0, 60}
	lons := []float64{45, 135, 225, 315}
	values := make([]float64, 0, 2*len(lats)*len(lons))
	for ti := 0; ti < 2; ti++ {
		for yi := range lats {
			for xi := range lons {
				values = append(values, fn(ti, yi, xi))
			}
		}
	}
	c, err := cube.FromElements(name, units.MustParse("K"), values,
		cube.NewCoord("time", units.MustParse("days since 2000-01-01"), []float64{0, 1}),
		cube.NewCoord("latitude", deg, lats),
		cube.NewCoord("longitude", deg, lons),
	)
	require.NoError(t, err)
	return c
}

func TestSpatial(t *testing.T) {
	// Only the northern band is warm; it holds a quarter of the area.
	c := newGrid(t, "surface_temperature", func(ti, yi, xi int) float64 {
		if yi == 2 {
			return 4 + float64(ti)
		}
		return 0
	})

	mean, err := Spatial(c, "mean", um)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, mean.Shape())
	assert.False(t, mean.HasCoord("latitude"))
	assert.False(t, mean.HasCoord("longitude"))
	assert.True(t, mean.HasCoord("time"))
	assert.InDeltaSlice(t, []float64{1, 1.25}, mean.Elements(), tol)
	assert.Equal(t, "surface_temperature", mean.Name())
	assert.Equal(t, []cube.CellMethod{{Method: "mean", Coords: []string{"latitude", "longitude"}}}, mean.CellMethods())

	alias, err := SpatialMean(c, um)
	require.NoError(t, err)
	assert.Equal(t, mean.Elements(), alias.Elements())

	maxi, err := Spatial(c, "MAX", um)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, maxi.Elements())

	// Bounds are guessed on a copy.
	lat, err := c.Coord("latitude")
	require.NoError(t, err)
	assert.False(t, lat.HasBounds())

	_, err = Spatial(c, "average", um)
	assert.ErrorIs(t, err, analysis.ErrUnknownAggregator)
}

func TestSpatialSinglePoint(t *testing.T) {
	c, err := cube.FromElements("t", units.MustParse("K"), []float64{1, 3},
		cube.NewCoord("latitude", units.MustParse("degrees"), []float64{0}),
		cube.NewCoord("longitude", units.MustParse("degrees"), []float64{0, 180}),
	)
	require.NoError(t, err)

	// Latitude cannot be bounded, so the mean is unweighted.
	mean, err := Spatial(c, "mean", um)
	require.NoError(t, err)
	assert.InDelta(t, 2, mean.Value(), tol)
}

func TestSpatialMeanTwice(t *testing.T) {
	c := newGrid(t, "t", func(ti, yi, xi int) float64 { return float64(ti + yi + xi) })
	once, err := SpatialMean(c, um)
	require.NoError(t, err)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	twice, err := SpatialMean(once, um)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "already collapsed")
	assert.Equal(t, once.Elements(), twice.Elements())
	assert.Equal(t, once.CellMethods(), twice.CellMethods())

	// Without a recorded collapse the missing coordinates are an error.
	bare, err := cube.FromElements("t", units.MustParse("K"), []float64{1, 2},
		cube.NewCoord("time", units.MustParse("days since 2000-01-01"), []float64{0, 1}))
	require.NoError(t, err)
	_, err = SpatialMean(bare, um)
	assert.ErrorIs(t, err, cube.ErrCoordNotFound)
}

func TestSpatialQuartiles(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	c := newGrid(t, "t", func(ti, yi, xi int) float64 { return float64(yi*4 + xi) })
	q25, q75, err := SpatialQuartiles(c, um)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No weights are applied")

	assert.Equal(t, []int{2}, q25.Shape())
	assert.InDeltaSlice(t, []float64{2.75, 2.75}, q25.Elements(), tol)
	assert.InDeltaSlice(t, []float64{8.25, 8.25}, q75.Elements(), tol)
	assert.Equal(t, "percentile", q75.CellMethods()[0].Method)
}

func TestZonalMeridionalCommute(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 0, 2, 5}
	c := newGrid(t, "t", func(ti, yi, xi int) float64 { return a[yi] * b[xi] * float64(ti+1) })

	zonal, err := ZonalMean(c, um)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, zonal.Shape())
	assert.InDeltaSlice(t, []float64{2, 4, 6, 4, 8, 12}, zonal.Elements(), tol)

	zm, err := MeridionalMean(zonal, um)
	require.NoError(t, err)
	mer, err := MeridionalMean(c, um)
	require.NoError(t, err)
	mz, err := ZonalMean(mer, um)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, zm.Shape())
	assert.InDeltaSlice(t, zm.Elements(), mz.Elements(), tol)
	// cos(lat) weights are 1/2, 1, 1/2.
	assert.InDelta(t, 2*(0.5*1+1*2+0.5*3)/2, zm.Elements()[0], tol)
}

func TestMeridionalMean(t *testing.T) {
	c := newGrid(t, "t", func(ti, yi, xi int) float64 {
		if yi == 2 {
			return 4
		}
		return 0
	})
	mer, err := MeridionalMean(c, um)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, mer.Shape())
	for _, v := range mer.Elements() {
		assert.InDelta(t, 1, v, tol)
	}
	assert.True(t, mer.Units().Equal(units.MustParse("K")))
}

func TestMinMaxDiff(t *testing.T) {
	temp := newGrid(t, "T", func(ti, yi, xi int) float64 { return float64(ti*10 + yi*xi) })
	other := newGrid(t, "other", func(int, int, int) float64 { return 0 })
	cubes := cube.List{other, temp}

	diff, err := MinMaxDiff(cubes, "T", um)
	require.NoError(t, err)
	assert.Equal(t, "T_difference", diff.Name())

	hi, err := Spatial(temp, "max", um)
	require.NoError(t, err)
	lo, err := Spatial(temp, "min", um)
	require.NoError(t, err)
	want := make([]float64, hi.Size())
	floats.SubTo(want, hi.Elements(), lo.Elements())
	assert.InDeltaSlice(t, want, diff.Elements(), tol)
	assert.InDeltaSlice(t, []float64{6, 6}, diff.Elements(), tol)

	_, err = MinMaxDiff(cubes, "missing", um)
	assert.Error(t, err)
}

func TestRegionMeanDiff(t *testing.T) {
	c := newGrid(t, "T", func(ti, yi, xi int) float64 { return float64(xi) })
	day := region.New(0, 180, -90, 90, "day")
	night := region.New(180, 360, -90, 90, "night")

	diff, err := RegionMeanDiff(cube.List{c}, "T", day, night, um)
	require.NoError(t, err)
	assert.Equal(t, "T_mean_diff_day_night", diff.Name())
	assert.InDeltaSlice(t, []float64{-2, -2}, diff.Elements(), tol)

	nowhere := region.New(0, 1, -90, 90, "nowhere")
	_, err = RegionMeanDiff(cube.List{c}, "T", day, nowhere, um)
	assert.ErrorIs(t, err, cube.ErrNoMatch)
}

func TestLastYearMean(t *testing.T) {
	points := make([]float64, 24)
	values := make([]float64, 24)
	for i := range points {
		points[i] = float64(i*30 + 15)
		values[i] = float64(i)
	}
	c, err := cube.FromElements("t", units.MustParse("K"), values,
		cube.NewCoord("time", units.MustParse("days since 2000-01-01"), points))
	require.NoError(t, err)

	res, err := LastYearMean(c, um)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ndim())
	// Points after 2000-12-06 up to 2001-12-06.
	assert.InDelta(t, floats.Sum(values[11:])/13, res.Value(), tol)
}

func TestIntegrate(t *testing.T) {
	values := make([]float64, 24)
	for i := range values {
		values[i] = float64(i)
	}
	m := units.MustParse("m")
	c, err := cube.FromElements("x_wind", units.MustParse("m/s"), values,
		cube.NewCoord("air_pressure", units.MustParse("hPa"), []float64{1000, 500}),
		cube.NewCoord("latitude", m, []float64{10, 30, 50, 70}),
		cube.NewCoord("longitude", m, []float64{-1, 2, 3}),
	)
	require.NoError(t, err)

	xInt, err := Integrate(c, "longitude")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, 15, 27, 39, 51, 63, 75, 87}, xInt.Elements(), tol)
	assert.True(t, xInt.Units().Equal(units.MustParse("m2/s")))
	assert.Equal(t, "integral_of_x_wind_wrt_longitude", xInt.Name())

	pInt, err := Integrate(c, "air_pressure")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, pInt.Shape())
	assert.InDeltaSlice(t, []float64{
		-3000, -3500, -4000,
		-4500, -5000, -5500,
		-6000, -6500, -7000,
		-7500, -8000, -8500,
	}, pInt.Elements(), tol)
	assert.True(t, pInt.Units().Equal(units.MustParse("hPa m s-1")))

	unsorted, err := cube.FromElements("x", units.Dimensionless, []float64{1, 2, 3},
		cube.NewCoord("level_height", m, []float64{0, 10, 5}))
	require.NoError(t, err)
	_, err = Integrate(unsorted, "level_height")
	assert.Error(t, err)
}

// newColumn returns a (level_height, latitude) cube.
func newColumn(t *testing.T, name, u string, values []float64, zBounds bool) *cube.Cube {
	t.Helper()
	z := cube.NewCoord("level_height", units.MustParse("m"), []float64{0, 10, 30})
	if zBounds {
		require.NoError(t, z.GuessBounds())
	}
	c, err := cube.FromElements(name, units.MustParse(u), values, z,
		cube.NewCoord("latitude", units.MustParse("degrees"), []float64{-30, 30}))
	require.NoError(t, err)
	return c
}

type bogusWeighting struct{}

func (bogusWeighting) weighting() {}

func TestVerticalMean(t *testing.T) {
	c := newColumn(t, "t", "K", []float64{1, 4, 2, 5, 3, 6}, false)
	w := newColumn(t, "rho", "kg m-3", []float64{1, 1, 1, 1, 2, 2}, true)

	plain, err := VerticalMean(c, um, nil)
	require.NoError(t, err)
	assert.Equal(t, "vertical_mean_of_t", plain.Name())
	assert.InDeltaSlice(t, []float64{2, 5}, plain.Elements(), tol)
	assert.False(t, plain.HasCoord("level_height"))

	byName, err := VerticalMean(c, um, ByCoordName("level_height"))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.75, 5.75}, byName.Elements(), tol)

	z, err := c.Coord("level_height")
	require.NoError(t, err)
	byCoord, err := VerticalMean(c, um, ByCoord{Coord: z})
	require.NoError(t, err)
	assert.InDeltaSlice(t, byName.Elements(), byCoord.Elements(), tol)

	byCube, err := VerticalMean(c, um, ByCube{Cube: w})
	require.NoError(t, err)
	assert.Equal(t, "vertical_mean_of_t", byCube.Name())
	assert.True(t, byCube.Units().Equal(units.MustParse("K")))
	assert.InDeltaSlice(t, []float64{95.0 / 40, 215.0 / 40}, byCube.Elements(), tol)

	// Same as integrating by hand once the bounds mismatch is removed.
	ws, err := w.WithoutBounds("level_height")
	require.NoError(t, err)
	prod, err := ws.Mul(c)
	require.NoError(t, err)
	num, err := Integrate(prod, "level_height")
	require.NoError(t, err)
	den, err := Integrate(w, "level_height")
	require.NoError(t, err)
	want, err := num.Div(den)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Elements(), byCube.Elements(), tol)
	assert.NotEqual(t, byName.Elements(), byCube.Elements())

	_, err = VerticalMean(c, um, bogusWeighting{})
	assert.ErrorIs(t, err, ErrUnrecognisedWeighting)
	assert.Contains(t, err.Error(), "bogusWeighting")

	_, err = VerticalMean(c, um, ByCoordName("sigma"))
	assert.ErrorIs(t, err, cube.ErrCoordNotFound)

	// The weighting coordinate must belong to the cube.
	foreign := cube.NewCoord("level_height", units.MustParse("m"), []float64{0, 20, 40})
	_, err = VerticalMean(c, um, ByCoord{Coord: foreign})
	assert.ErrorIs(t, err, cube.ErrCoordMismatch)
	_, err = VerticalMean(c, um, ByCoord{Coord: cube.NewCoord("sigma", units.MustParse("1"), []float64{1, 0.5, 0})})
	assert.ErrorIs(t, err, cube.ErrCoordNotFound)
}

func newSeries(t *testing.T, values []float64) *cube.Cube {
	t.Helper()
	c, err := cube.FromElements("precip", units.MustParse("kg m-2 days-1"), values,
		cube.NewCoord("time", units.MustParse("days since 2000-01-01"), []float64{0, 2, 4, 6}),
		cube.NewCoord("latitude", units.MustParse("degrees"), []float64{-30, 30}))
	require.NoError(t, err)
	return c
}

func TestCumsum(t *testing.T) {
	c := newSeries(t, []float64{1, 1, 2, 2, 3, 3, 4, 4})

	once, err := Cumsum(c, "t", false, um)
	require.NoError(t, err)
	assert.Equal(t, "cumulative_sum_of_precip_along_t", once.Name())
	assert.Equal(t, []float64{1, 1, 3, 3, 6, 6, 10, 10}, once.Elements())
	assert.True(t, once.Units().Equal(c.Units()))

	// The last element is the sum over the whole axis.
	total, err := c.Collapsed([]string{"time"}, analysis.Sum)
	require.NoError(t, err)
	assert.Equal(t, total.Elements(), once.Elements()[6:])

	twice, err := Cumsum(once, "t", false, um)
	require.NoError(t, err)
	assert.NotEqual(t, once.Elements(), twice.Elements())
	assert.Equal(t, []float64{1, 1, 4, 4, 10, 10, 20, 20}, twice.Elements())
}

func TestCumsumAxisWeights(t *testing.T) {
	c := newSeries(t, []float64{1, 1, math.NaN(), 2, 3, 3, 4, 4})

	res, err := Cumsum(c, "t", true, um)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 6, 8, 12, 16, 20}, res.Elements())
	assert.True(t, res.Units().Equal(units.MustParse("kg m-2")))

	// The source time coordinate keeps no bounds.
	tc, err := c.Coord("time")
	require.NoError(t, err)
	assert.False(t, tc.HasBounds())
}

func TestCumsumAxisFallback(t *testing.T) {
	c := newSeries(t, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	res, err := Cumsum(c, "y", false, model.Model{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 3, 7, 5, 11, 7, 15}, res.Elements())
	assert.Equal(t, "cumulative_sum_of_precip_along_y", res.Name())

	_, err = Cumsum(c, "z", false, um)
	assert.ErrorIs(t, err, cube.ErrCoordNotFound)
}

func TestVerticalCumsum(t *testing.T) {
	c := newColumn(t, "rho", "kg m-3", []float64{1, 1, 1, 1, 2, 2}, false)
	res, err := VerticalCumsum(c, true, um)
	require.NoError(t, err)
	assert.Equal(t, "vertical_cumulative_sum_of_rho", res.Name())
	// Guessed widths are 10, 15 and 20 m.
	assert.InDeltaSlice(t, []float64{10, 10, 25, 25, 65, 65}, res.Elements(), tol)
	assert.True(t, res.Units().Equal(units.MustParse("kg m-2")))
}
