// Package subset extracts time windows from cubes.
package subset

import (
	"errors"
	"fmt"
	"time"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
)

// ErrNoTimeReference is returned for time coordinates whose units are not of
// the form "<step> since <epoch>".
var ErrNoTimeReference = errors.New("time coordinate has no reference date")

// Dates converts the points of a time coordinate to times.
func Dates(co *cube.Coord) ([]time.Time, error) {
	if _, _, ok := co.Units.TimeReference(); !ok {
		return nil, fmt.Errorf("%w: %q has units %q", ErrNoTimeReference, co.Name, co.Units)
	}
	dates := make([]time.Time, co.Len())
	for i, p := range co.Points {
		dates[i], _ = co.Units.Date(p)
	}
	return dates, nil
}

// ExtractLastYear returns the part of the cube within one year of its last
// time point: points after last-1y up to and including last.
func ExtractLastYear(c *cube.Cube, m model.Model) (*cube.Cube, error) {
	co, err := c.Coord(m.T)
	if err != nil {
		return nil, err
	}
	if co.Len() == 0 {
		return nil, fmt.Errorf("%w: %q is empty", cube.ErrNoMatch, co.Name)
	}
	dates, err := Dates(co)
	if err != nil {
		return nil, err
	}
	last := dates[len(dates)-1]
	start := last.AddDate(-1, 0, 0)
	return c.Extract(cube.Constraint{
		co.Name: func(p float64) bool {
			d, _ := co.Units.Date(p)
			return d.After(start) && !d.After(last)
		},
	})
}
