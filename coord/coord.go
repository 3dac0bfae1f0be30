// Package coord holds helpers that compute coordinate-derived quantities:
// cell bounds and geographic area weights.
package coord

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
	"github.com/rtm0/aeolus/units"
)

// EarthRadius is the sphere radius used for cell areas, in metres.
const EarthRadius = 6371229.0

// Name resolves an axis role through the model.
func Name(m model.Model, role string) (string, error) {
	name, ok := m.Axis(role)
	if !ok {
		return "", fmt.Errorf("model has no coordinate for axis %q", role)
	}
	return name, nil
}

// EnsureBounds returns a cube whose coordinates for the given axis roles
// carry bounds, guessing them where absent. Single-point coordinates are left
// without bounds. The input cube is not modified.
func EnsureBounds(c *cube.Cube, roles []string, m model.Model) (*cube.Cube, error) {
	res := c
	for _, role := range roles {
		name, err := Name(m, role)
		if err != nil {
			return nil, err
		}
		co, err := res.Coord(name)
		if err != nil {
			return nil, err
		}
		if co.HasBounds() || co.Len() < 2 {
			continue
		}
		guessed := co.Copy()
		if err := guessed.GuessBounds(); err != nil {
			return nil, err
		}
		if res, err = res.WithCoord(guessed); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func toRadians(co *cube.Coord, v float64) float64 {
	if u := strings.ToLower(co.Units.String()); u == "rad" || u == "radian" || u == "radians" {
		return v
	}
	return v * math.Pi / 180
}

// AreaWeights returns the area of every horizontal cell broadcast to the
// shape of the cube. Both horizontal coordinates must have bounds. With
// normalize the areas of each horizontal slice sum to one.
func AreaWeights(c *cube.Cube, m model.Model, normalize bool) (*sparse.DenseArray, error) {
	xName, err := Name(m, "x")
	if err != nil {
		return nil, err
	}
	yName, err := Name(m, "y")
	if err != nil {
		return nil, err
	}
	x, err := c.Coord(xName)
	if err != nil {
		return nil, err
	}
	y, err := c.Coord(yName)
	if err != nil {
		return nil, err
	}
	if !x.HasBounds() || !y.HasBounds() {
		return nil, fmt.Errorf("coordinates %q and %q must have bounds", yName, xName)
	}
	xDim, _ := c.CoordDim(xName)
	yDim, _ := c.CoordDim(yName)

	areas := make([]float64, 0, y.Len()*x.Len())
	for _, yb := range y.Bounds {
		lo := math.Sin(clipLatitude(toRadians(y, yb[0])))
		hi := math.Sin(clipLatitude(toRadians(y, yb[1])))
		for _, xb := range x.Bounds {
			dx := toRadians(x, xb[1]) - toRadians(x, xb[0])
			areas = append(areas, EarthRadius*EarthRadius*math.Abs(hi-lo)*math.Abs(dx))
		}
	}
	if normalize {
		floats.Scale(1/floats.Sum(areas), areas)
	}
	return cube.BroadcastToShape(areas, c.Shape(), []int{yDim, xDim})
}

// AreaWeightsCube wraps AreaWeights in a cube with the coordinates of c.
func AreaWeightsCube(c *cube.Cube, m model.Model, normalize bool) (*cube.Cube, error) {
	w, err := AreaWeights(c, m, normalize)
	if err != nil {
		return nil, err
	}
	u := units.MustParse("m2")
	if normalize {
		u = units.Dimensionless
	}
	return cube.New("area_weights", u, w, c.Coords()...)
}

// clipLatitude limits a latitude in radians to the poles.
func clipLatitude(v float64) float64 {
	return math.Max(-math.Pi/2, math.Min(math.Pi/2, v))
}
