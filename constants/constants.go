// Package constants loads named sets of physical constants.
//
// A set is the union of the general constants (general.json) and the
// constants of one planet (<name>.json), the latter taking precedence. Each
// constant is exposed as a scalar cube carrying its value and units.
package constants

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rtm0/aeolus/cube"
	"github.com/rtm0/aeolus/units"
)

const generalSet = "general"

//go:embed store/*.json
var store embed.FS

// LoadError is returned when the JSON file of a constant set is missing.
type LoadError struct {
	Set string
	Dir string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("JSON file for %s configuration not found, check the directory: %s", e.Set, e.Dir)
}

func (e *LoadError) Unwrap() error { return e.Err }

type options struct {
	fsys fs.FS
	dir  string
}

// Option configures where constant sets are read from.
type Option func(*options)

// WithDir reads the JSON files from a directory on disk.
func WithDir(dir string) Option {
	return func(o *options) {
		o.fsys = os.DirFS(dir)
		o.dir = dir
	}
}

// WithFS reads the JSON files from the root of fsys. label names the source
// in errors.
func WithFS(fsys fs.FS, label string) Option {
	return func(o *options) {
		o.fsys = fsys
		o.dir = label
	}
}

func defaultOptions() options {
	sub, err := fs.Sub(store, "store")
	if err != nil {
		panic(err)
	}
	return options{fsys: sub, dir: "embedded store"}
}

type record struct {
	Name  string   `json:"name" validate:"required"`
	Value *float64 `json:"value" validate:"required"`
	Units string   `json:"units"`
}

type recordFile struct {
	Records []record `validate:"unique=Name,dive"`
}

var validate = validator.New()

func readSet(o options, set string) ([]record, error) {
	data, err := fs.ReadFile(o.fsys, set+".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Set: set, Dir: o.dir, Err: err}
		}
		return nil, fmt.Errorf("cannot read %s constants from %s: %w", set, o.dir, err)
	}
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("cannot parse %s constants: %w", set, err)
	}
	if err := validate.Struct(recordFile{Records: recs}); err != nil {
		return nil, fmt.Errorf("invalid %s constants: %w", set, err)
	}
	return recs, nil
}

// builder collects raw records in first-seen order; later records with the
// same name replace earlier ones in place.
type builder struct {
	order []string
	raw   map[string]record
}

func (b *builder) add(recs []record) {
	if b.raw == nil {
		b.raw = make(map[string]record)
	}
	for _, r := range recs {
		if _, ok := b.raw[r.Name]; !ok {
			b.order = append(b.order, r.Name)
		}
		b.raw[r.Name] = r
	}
}

func (b *builder) build(name string) (*Constants, error) {
	c := &Constants{
		name:   name,
		fields: make([]string, 0, len(b.order)+1),
		values: make(map[string]*cube.Cube, len(b.order)+1),
	}
	for _, field := range b.order {
		r := b.raw[field]
		u, err := units.Parse(r.Units)
		if err != nil {
			return nil, fmt.Errorf("constant %q: %w", field, err)
		}
		c.set(field, cube.NewScalar(field, *r.Value, u))
	}
	if err := c.derive(); err != nil {
		return nil, err
	}
	return c, nil
}

// Init loads the constant set called name.
func Init(name string, opts ...Option) (*Constants, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var b builder
	for _, set := range []string{generalSet, name} {
		recs, err := readSet(o, set)
		if err != nil {
			return nil, err
		}
		b.add(recs)
	}
	return b.build(name)
}

// InitPlanet is an alias of Init.
func InitPlanet(name string, opts ...Option) (*Constants, error) {
	return Init(name, opts...)
}

// Constants is an immutable set of scalar constants.
type Constants struct {
	name   string
	fields []string
	values map[string]*cube.Cube
}

func (c *Constants) set(field string, v *cube.Cube) {
	if _, ok := c.values[field]; !ok {
		c.fields = append(c.fields, field)
	}
	c.values[field] = v
}

func (c *Constants) derive() error {
	mgc, ok1 := c.values["molar_gas_constant"]
	mw, ok2 := c.values["dry_air_molecular_weight"]
	if !ok1 || !ok2 {
		return nil
	}
	rd, err := mgc.Div(mw)
	if err != nil {
		return fmt.Errorf("cannot derive dry_air_gas_constant: %w", err)
	}
	c.set("dry_air_gas_constant", rd.WithName("dry_air_gas_constant"))
	return nil
}

// Name returns the record type name, e.g. "EarthConstants".
func (c *Constants) Name() string {
	if c.name == "" {
		return "Constants"
	}
	return strings.ToUpper(c.name[:1]) + strings.ToLower(c.name[1:]) + "Constants"
}

// Fields returns the constant names in load order.
func (c *Constants) Fields() []string {
	return append([]string(nil), c.fields...)
}

// Get returns the named constant.
func (c *Constants) Get(field string) (*cube.Cube, bool) {
	v, ok := c.values[field]
	return v, ok
}

func (c *Constants) String() string {
	parts := make([]string, len(c.fields))
	for i, f := range c.fields {
		parts[i] = fmt.Sprintf("%s [%s]", f, c.values[f].Units())
	}
	return fmt.Sprintf("%s(%s)", c.Name(), strings.Join(parts, ", "))
}

// Typed accessors return nil when the set does not define the constant.

func (c *Constants) Gravity() *cube.Cube                  { return c.values["gravity"] }
func (c *Constants) Radius() *cube.Cube                   { return c.values["radius"] }
func (c *Constants) Day() *cube.Cube                      { return c.values["day"] }
func (c *Constants) SolarConstant() *cube.Cube            { return c.values["solar_constant"] }
func (c *Constants) ReferenceSurfacePressure() *cube.Cube { return c.values["reference_surface_pressure"] }
func (c *Constants) DryAirSpecHeatPress() *cube.Cube      { return c.values["dry_air_spec_heat_press"] }
func (c *Constants) DryAirMolecularWeight() *cube.Cube    { return c.values["dry_air_molecular_weight"] }
func (c *Constants) MolarGasConstant() *cube.Cube         { return c.values["molar_gas_constant"] }
func (c *Constants) DryAirGasConstant() *cube.Cube        { return c.values["dry_air_gas_constant"] }
func (c *Constants) StefanBoltzmann() *cube.Cube          { return c.values["stefan_boltzmann"] }
func (c *Constants) Boltzmann() *cube.Cube                { return c.values["boltzmann"] }
func (c *Constants) Avogadro() *cube.Cube                 { return c.values["avogadro"] }
func (c *Constants) WaterHeatVaporization() *cube.Cube    { return c.values["water_heat_vaporization"] }
func (c *Constants) WaterMolecularWeight() *cube.Cube     { return c.values["water_molecular_weight"] }
func (c *Constants) WaterDensity() *cube.Cube             { return c.values["water_density"] }
