// Package region describes rectangular geographic regions.
package region

import (
	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/model"
)

// Region is a longitude-latitude box in degrees. When West is greater than
// East the box wraps across the longitude seam.
type Region struct {
	Name        string
	Description string
	West        float64
	East        float64
	South       float64
	North       float64
}

// New creates a region.
func New(west, east, south, north float64, name string) Region {
	return Region{Name: name, West: west, East: east, South: south, North: north}
}

// Constraint selects the cells whose points fall inside the region, bounds
// included.
func (r Region) Constraint(m model.Model) cube.Constraint {
	return cube.Constraint{
		m.X: r.containsLongitude,
		m.Y: func(lat float64) bool { return lat >= r.South && lat <= r.North },
	}
}

func (r Region) containsLongitude(lon float64) bool {
	if r.West <= r.East {
		return lon >= r.West && lon <= r.East
	}
	return lon >= r.West || lon <= r.East
}

func (r Region) String() string {
	return r.Name
}
