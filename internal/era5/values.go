package era5

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/rtm0/aeolus/units"
)

var errNotNumeric = errors.New("not a numeric variable")

// flatten converts the nested slices returned by the NetCDF reader into a
// flat row-major array and its shape.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("%w: no values", errNotNumeric)
	}
	var shape []int
	for t := rv; t.Kind() == reflect.Slice; t = t.Index(0) {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	out := make([]float64, 0, n)
	var walk func(x reflect.Value) error
	walk = func(x reflect.Value) error {
		switch x.Kind() {
		case reflect.Slice:
			for i := 0; i < x.Len(); i++ {
				if err := walk(x.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Float32, reflect.Float64:
			out = append(out, x.Float())
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			out = append(out, float64(x.Int()))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			out = append(out, float64(x.Uint()))
		default:
			return fmt.Errorf("%w: %s", errNotNumeric, x.Type())
		}
		return nil
	}
	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

// nest is the inverse of flatten for float64 data.
func nest(flat []float64, shape []int) any {
	if len(shape) == 0 {
		return flat[0]
	}
	return nestValue(flat, shape).Interface()
}

func nestValue(flat []float64, shape []int) reflect.Value {
	if len(shape) == 1 {
		return reflect.ValueOf(append([]float64(nil), flat[:shape[0]]...))
	}
	t := reflect.TypeOf(float64(0))
	for range shape[1:] {
		t = reflect.SliceOf(t)
	}
	out := reflect.MakeSlice(reflect.SliceOf(t), shape[0], shape[0])
	stride := len(flat) / shape[0]
	for i := 0; i < shape[0]; i++ {
		out.Index(i).Set(nestValue(flat[i*stride:(i+1)*stride], shape[1:]))
	}
	return out
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	vals, _, err := flatten(v)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	v, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// unpack applies the CF packing attributes in place: fill and missing values
// become NaN, then values are scaled and offset.
func unpack(vals []float64, attrs api.AttributeMap) {
	fill, hasFill := attrFloat(attrs, "_FillValue")
	missing, hasMissing := attrFloat(attrs, "missing_value")
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, _ := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	for i, v := range vals {
		if (hasFill && v == fill) || (hasMissing && v == missing) {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = v*scale + offset
	}
}

// parseUnits parses the units attribute. Expressions outside the supported
// grammar, such as "(0 - 1)", are treated as dimensionless.
func parseUnits(varName string, attrs api.AttributeMap) units.Unit {
	s := attrString(attrs, "units")
	u, err := units.Parse(s)
	if err != nil {
		slog.Debug("Unsupported units, assuming dimensionless", "var", varName, "units", s, "err", err)
		return units.Dimensionless
	}
	return u
}

// cubeName picks the CF standard name, then the long name, then the variable
// name.
func cubeName(varName string, attrs api.AttributeMap) string {
	if s := attrString(attrs, "standard_name"); s != "" {
		return s
	}
	if s := attrString(attrs, "long_name"); s != "" {
		return s
	}
	return varName
}
