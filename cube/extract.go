package cube

import "fmt"

// Constraint selects cells by coordinate value: each entry maps a
// coordinate name to a predicate on its points.
type Constraint map[string]func(float64) bool

// Extract returns the subset of the cube whose points satisfy every
// predicate of con.
func (c *Cube) Extract(con Constraint) (*Cube, error) {
	keep := make([][]int, c.Ndim())
	for name, pred := range con {
		d, err := c.CoordDim(name)
		if err != nil {
			return nil, err
		}
		var idx []int
		for i, p := range c.coords[d].Points {
			if pred(p) {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: %q in cube %q", ErrNoMatch, name, c.name)
		}
		keep[d] = idx
	}
	return c.subset(keep), nil
}

// subset keeps the listed indices along each axis; a nil entry keeps the
// whole axis.
func (c *Cube) subset(keep [][]int) *Cube {
	res := c.shallow()
	shape := make([]int, c.Ndim())
	for d, n := range c.data.Shape {
		if keep[d] == nil {
			shape[d] = n
			continue
		}
		shape[d] = len(keep[d])
		res.coords[d] = c.coords[d].subset(keep[d])
	}
	res.data = newArray(shape)
	strides := make([]int, len(shape))
	stride := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= c.data.Shape[d]
	}
	eachIndex(shape, func(flat int, idx []int) {
		src := 0
		for d, i := range idx {
			if keep[d] != nil {
				i = keep[d][i]
			}
			src += i * strides[d]
		}
		res.data.Elements[flat] = c.data.Elements[src]
	})
	return res
}

// Slice returns the cube restricted to index i of the named coordinate. The
// axis is kept with length one.
func (c *Cube) Slice(name string, i int) (*Cube, error) {
	d, err := c.CoordDim(name)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= c.data.Shape[d] {
		return nil, fmt.Errorf("index %d out of range for coordinate %q of length %d", i, name, c.data.Shape[d])
	}
	keep := make([][]int, c.Ndim())
	keep[d] = []int{i}
	return c.subset(keep), nil
}
