package cube

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/rtm0/aeolus/units"
)

// Add returns c + o. Units must match.
func (c *Cube) Add(o *Cube) (*Cube, error) {
	if !c.units.Equal(o.units) {
		return nil, fmt.Errorf("%w: cannot add %s to %s", ErrUnitMismatch, o.units, c.units)
	}
	return c.binary(o, c.units, func(a, b float64) float64 { return a + b })
}

// Sub returns c - o. Units must match.
func (c *Cube) Sub(o *Cube) (*Cube, error) {
	if !c.units.Equal(o.units) {
		return nil, fmt.Errorf("%w: cannot subtract %s from %s", ErrUnitMismatch, o.units, c.units)
	}
	return c.binary(o, c.units, func(a, b float64) float64 { return a - b })
}

// Mul returns c * o.
func (c *Cube) Mul(o *Cube) (*Cube, error) {
	return c.binary(o, c.units.Mul(o.units), func(a, b float64) float64 { return a * b })
}

// Div returns c / o.
func (c *Cube) Div(o *Cube) (*Cube, error) {
	return c.binary(o, c.units.Div(o.units), func(a, b float64) float64 { return a / b })
}

// binary applies op elementwise. Operands must share shape and coordinates
// unless one of them is scalar.
func (c *Cube) binary(o *Cube, u units.Unit, op func(a, b float64) float64) (*Cube, error) {
	var res *Cube
	switch {
	case o.Ndim() == 0:
		res = c.shallow()
		res.data = newArray(c.data.Shape)
		b := o.data.Elements[0]
		for i, a := range c.data.Elements {
			res.data.Elements[i] = op(a, b)
		}
	case c.Ndim() == 0:
		res = o.shallow()
		res.data = newArray(o.data.Shape)
		a := c.data.Elements[0]
		for i, b := range o.data.Elements {
			res.data.Elements[i] = op(a, b)
		}
	default:
		if !sameShape(c.data.Shape, o.data.Shape) {
			return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, c.data.Shape, o.data.Shape)
		}
		for i, co := range c.coords {
			if !co.Equal(o.coords[i]) {
				return nil, fmt.Errorf("%w: %q differs between %q and %q", ErrCoordMismatch, co.Name, c.name, o.name)
			}
		}
		res = c.shallow()
		res.data = newArray(c.data.Shape)
		for i, a := range c.data.Elements {
			res.data.Elements[i] = op(a, o.data.Elements[i])
		}
	}
	if c.name != o.name {
		res.name = "unknown"
	}
	res.units = u
	return res, nil
}

// MulArray multiplies the cube elementwise by an array of the same shape.
func (c *Cube) MulArray(w *sparse.DenseArray) (*Cube, error) {
	if !sameShape(w.Shape, c.data.Shape) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, w.Shape, c.data.Shape)
	}
	res := c.shallow()
	res.data = newArray(c.data.Shape)
	for i, a := range c.data.Elements {
		res.data.Elements[i] = a * w.Elements[i]
	}
	return res, nil
}

// DivScalar divides every value by x.
func (c *Cube) DivScalar(x float64) *Cube {
	res := c.shallow()
	res.data = newArray(c.data.Shape)
	for i, a := range c.data.Elements {
		res.data.Elements[i] = a / x
	}
	return res
}
