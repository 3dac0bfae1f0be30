package era5

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/aeolus/calc"
	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
	"github.com/rtm0/aeolus/units"
)

func newTempCube(t *testing.T) *cube.Cube {
	t.Helper()
	deg := units.MustParse("degrees")
	lat := cube.NewCoord("latitude", deg, []float64{-45, 45})
	require.NoError(t, lat.GuessBounds())
	values := make([]float64, 3*2*4)
	for i := range values {
		values[i] = 270 + float64(i)
	}
	c, err := cube.FromElements("t2m", units.MustParse("K"), values,
		cube.NewCoord("time", units.MustParse("hours since 1900-01-01 00:00:00"), []float64{1086960, 1086966, 1086972}),
		lat,
		cube.NewCoord("longitude", deg, []float64{0, 90, 180, 270}),
	)
	require.NoError(t, err)
	return c
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2m.nc")
	c := newTempCube(t)
	require.NoError(t, Save(path, cube.List{c}))

	cubes, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	got := cubes[0]
	assert.Equal(t, "t2m", got.Name())
	assert.True(t, got.Units().Equal(c.Units()))
	assert.Equal(t, c.Shape(), got.Shape())
	assert.Equal(t, c.Elements(), got.Elements())
	for _, want := range c.Coords() {
		co, err := got.Coord(want.Name)
		require.NoError(t, err)
		assert.True(t, co.Equal(want), "coordinate %s", want.Name)
	}
	lat, err := got.Coord("latitude")
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{-90, 0}, {0, 90}}, lat.Bounds)

	none, err := Load(path, "u10")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2m.nc")
	require.NoError(t, Save(path, cube.List{newTempCube(t)}, WithAttributes(map[string]string{
		"source":    "aeolus",
		"long_name": "ignored",
	})))

	nc, err := netcdf.Open(path)
	require.NoError(t, err)
	defer nc.Close()
	vg, err := nc.GetVarGetter("t2m")
	require.NoError(t, err)
	assert.Equal(t, "aeolus", attrString(vg.Attributes(), "source"))
	assert.Equal(t, "t2m", attrString(vg.Attributes(), "long_name"))
	assert.Equal(t, "K", attrString(vg.Attributes(), "units"))

	cubes, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	assert.Equal(t, "t2m", cubes[0].Name())
}

func TestSaveCoordMismatch(t *testing.T) {
	a := newTempCube(t)
	b, err := cube.FromElements("sp", units.MustParse("Pa"), []float64{1, 2},
		cube.NewCoord("latitude", units.MustParse("degrees"), []float64{0, 10}))
	require.NoError(t, err)
	err = Save(filepath.Join(t.TempDir(), "bad.nc"), cube.List{a, b})
	assert.ErrorIs(t, err, cube.ErrCoordMismatch)
}

func TestLoadPacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packed.nc")
	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	attrs, err := util.NewOrderedMap(
		[]string{"scale_factor", "add_offset", "_FillValue", "units", "long_name"},
		map[string]any{
			"scale_factor": 0.5,
			"add_offset":   10.0,
			"_FillValue":   int16(-32767),
			"units":        "(0 - 1)",
			"long_name":    "Total cloud cover",
		})
	require.NoError(t, err)
	require.NoError(t, w.AddVar("tcc", api.Variable{
		Values:     []int16{1, 2, -32767},
		Dimensions: []string{"x"},
		Attributes: attrs,
	}))
	require.NoError(t, w.Close())

	cubes, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	c := cubes[0]
	assert.Equal(t, "Total cloud cover", c.Name())
	assert.True(t, c.Units().IsDimensionless())
	vals := c.Elements()
	assert.Equal(t, []float64{10.5, 11}, vals[:2])
	assert.True(t, math.IsNaN(vals[2]))

	// No coordinate variable: index points.
	x, err := c.Coord("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, x.Points)
}

func TestScanner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2m.nc")
	c := newTempCube(t)
	require.NoError(t, Save(path, cube.List{c}))

	s, err := NewScanner(path, "t2m", model.ERA5)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 3, s.Steps())
	assert.Contains(t, s.Summary(), "latitudeCnt")

	var stamps []int64
	var means []float64
	for s.Scan() {
		step := s.Cube()
		assert.Equal(t, []int{2, 4}, step.Shape())
		assert.False(t, step.HasCoord("time"))
		mean, err := calc.SpatialMean(step, model.ERA5)
		require.NoError(t, err)
		stamps = append(stamps, s.Timestamp())
		means = append(means, mean.Value())
	}
	require.NoError(t, s.Err())

	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, []int64{want, want + 6*3600*1000, want + 12*3600*1000}, stamps)
	assert.InDeltaSlice(t, []float64{273.5, 281.5, 289.5}, means, 1e-9)
}

func TestScannerTimeFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t2m.nc")
	require.NoError(t, Save(path, cube.List{newTempCube(t)}))

	m := model.ERA5
	m.T = "valid_time"
	_, err := NewScanner(path, "t2m", m)
	assert.Error(t, err)

	_, err = NewScanner(path, "missing", model.ERA5)
	assert.Error(t, err)
}

func TestLoadMultiDir(t *testing.T) {
	root := t.TempDir()
	c := newTempCube(t)
	warm, err := c.Add(cube.NewScalar("t2m", 10, units.MustParse("K")))
	require.NoError(t, err)
	for label, cubes := range map[string]cube.List{"base": {c}, "warm": {warm}} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, label), 0o755))
		require.NoError(t, Save(filepath.Join(root, label, "t2m.nc"), cubes))
	}

	cubes, err := LoadMultiDir(filepath.Join(root, "{}", "*.nc"), []string{"base", "warm"}, "")
	require.NoError(t, err)
	require.Len(t, cubes, 1)
	got := cubes[0]
	assert.Equal(t, "t2m", got.Name())
	assert.Equal(t, []int{2, 3, 2, 4}, got.Shape())
	run, err := got.Coord("run")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, run.Points)
	assert.Equal(t, c.Elements(), got.Elements()[:c.Size()])
	assert.Equal(t, warm.Elements(), got.Elements()[c.Size():])

	labelled, err := LoadMultiDir(filepath.Join(root, "{}", "t2m.nc"), []string{"warm"}, "experiment")
	require.NoError(t, err)
	require.Len(t, labelled, 1)
	assert.True(t, labelled[0].HasCoord("experiment"))

	_, err = LoadMultiDir(filepath.Join(root, "{}", "*.nc"), []string{"base", "cold"}, "run")
	assert.Error(t, err)
}
