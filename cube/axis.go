package cube

import (
	"github.com/rtm0/aeolus/units"
)

// eachLine calls fn for every 1-D line along axis d. base is the flat index
// of the first element, stride the distance between elements and out the
// row-major index of the line in the shape with axis d removed.
func eachLine(shape []int, d int, fn func(out, base, stride int)) {
	outer, inner := 1, 1
	for i, n := range shape {
		switch {
		case i < d:
			outer *= n
		case i > d:
			inner *= n
		}
	}
	n := shape[d]
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			fn(o*inner+i, o*n*inner+i, inner)
		}
	}
}

// Reduce collapses the named coordinate with fn, which receives the values
// along the axis in coordinate order. Unlike Collapsed, no cell method is
// recorded and missing values are passed through.
func (c *Cube) Reduce(name string, u units.Unit, fn func(line []float64) float64) (*Cube, error) {
	d, err := c.CoordDim(name)
	if err != nil {
		return nil, err
	}
	shape := c.data.Shape
	var outShape []int
	var coords []*Coord
	for i, n := range shape {
		if i != d {
			outShape = append(outShape, n)
			coords = append(coords, c.coords[i])
		}
	}
	out := newArray(outShape)
	line := make([]float64, shape[d])
	eachLine(shape, d, func(o, base, stride int) {
		for k := range line {
			line[k] = c.data.Elements[base+k*stride]
		}
		out.Elements[o] = fn(line)
	})
	res := c.shallow()
	res.units = u
	res.data = out
	res.coords = coords
	return res, nil
}

// MapAxis returns a copy of the cube in which every line along the named
// coordinate has been transformed in place by fn.
func (c *Cube) MapAxis(name string, fn func(line []float64)) (*Cube, error) {
	d, err := c.CoordDim(name)
	if err != nil {
		return nil, err
	}
	shape := c.data.Shape
	out := newArray(shape)
	line := make([]float64, shape[d])
	eachLine(shape, d, func(_, base, stride int) {
		for k := range line {
			line[k] = c.data.Elements[base+k*stride]
		}
		fn(line)
		for k, v := range line {
			out.Elements[base+k*stride] = v
		}
	})
	res := c.shallow()
	res.data = out
	return res, nil
}
