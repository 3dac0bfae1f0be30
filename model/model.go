// Package model maps abstract axis roles and variables to the names used by
// a particular model's output conventions.
package model

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model holds coordinate and variable names for one dataset convention.
type Model struct {
	// Coordinates
	T       string `yaml:"t"`        // time
	FcstRef string `yaml:"fcst_ref"` // forecast reference
	FcstPrd string `yaml:"fcst_prd"` // forecast period
	Z       string `yaml:"z"`        // height
	Lev     string `yaml:"lev"`      // level number
	S       string `yaml:"s"`        // sigma
	Y       string `yaml:"y"`        // latitude
	X       string `yaml:"x"`        // longitude

	// Main variables
	U     string `yaml:"u"`
	V     string `yaml:"v"`
	W     string `yaml:"w"`
	Pres  string `yaml:"pres"`
	Thta  string `yaml:"thta"`
	Exner string `yaml:"exner"`
	SH    string `yaml:"sh"`
	TSfc  string `yaml:"t_sfc"`
	PSfc  string `yaml:"p_sfc"`
	Temp  string `yaml:"temp"`
	Dens  string `yaml:"dens"`
	Ghgt  string `yaml:"ghgt"`
	RH    string `yaml:"rh"`

	// Radiation
	ToaISR   string `yaml:"toa_isr"`
	ToaOLR   string `yaml:"toa_olr"`
	ToaOLRCS string `yaml:"toa_olr_cs"`
	ToaOSR   string `yaml:"toa_osr"`
	ToaOSRCS string `yaml:"toa_osr_cs"`
	SfcDnLW  string `yaml:"sfc_dn_lw"`
	SfcDnSW  string `yaml:"sfc_dn_sw"`

	// Boundary layer
	SfcSHF  string `yaml:"sfc_shf"`
	SfcLHF  string `yaml:"sfc_lhf"`
	SfcEvap string `yaml:"sfc_evap"`

	// Precipitation and cloud
	CldIceMF string `yaml:"cld_ice_mf"`
	CldLiqMF string `yaml:"cld_liq_mf"`
	CAF      string `yaml:"caf"`
	PPN      string `yaml:"ppn"`
	LSRain   string `yaml:"ls_rain"`
	LSSnow   string `yaml:"ls_snow"`
	CVRain   string `yaml:"cv_rain"`
	CVSnow   string `yaml:"cv_snow"`
}

// UM is the naming convention of the Met Office Unified Model.
var UM = Model{
	T:       "time",
	FcstRef: "forecast_reference_time",
	FcstPrd: "forecast_period",
	Z:       "level_height",
	Lev:     "model_level_number",
	S:       "sigma",
	Y:       "latitude",
	X:       "longitude",

	U:     "x_wind",
	V:     "y_wind",
	W:     "upward_air_velocity",
	Pres:  "air_pressure",
	Thta:  "air_potential_temperature",
	Exner: "dimensionless_exner_function",
	SH:    "specific_humidity",
	TSfc:  "surface_temperature",
	PSfc:  "surface_air_pressure",
	Temp:  "air_temperature",
	Dens:  "air_density",
	Ghgt:  "geopotential_height",
	RH:    "relative_humidity",

	ToaISR:   "toa_incoming_shortwave_flux",
	ToaOLR:   "toa_outgoing_longwave_flux",
	ToaOLRCS: "toa_outgoing_longwave_flux_assuming_clear_sky",
	ToaOSR:   "toa_outgoing_shortwave_flux",
	ToaOSRCS: "toa_outgoing_shortwave_flux_assuming_clear_sky",
	SfcDnLW:  "surface_downwelling_longwave_flux_in_air",
	SfcDnSW:  "surface_downwelling_shortwave_flux_in_air",

	SfcSHF:  "surface_upward_sensible_heat_flux",
	SfcLHF:  "surface_upward_latent_heat_flux",
	SfcEvap: "surface_evaporation_flux",

	CldIceMF: "mass_fraction_of_cloud_ice_in_air",
	CldLiqMF: "mass_fraction_of_cloud_liquid_water_in_air",
	CAF:      "cloud_area_fraction_assuming_maximum_random_overlap",
	PPN:      "precipitation_flux",
	LSRain:   "stratiform_rainfall_flux",
	LSSnow:   "stratiform_snowfall_flux",
	CVRain:   "convective_rainfall_flux",
	CVSnow:   "convective_snowfall_flux",
}

// LFRic is the naming convention of LFRic output files.
var LFRic = Model{
	T: "time",
	Z: "level_height",
	Y: "latitude",
	X: "longitude",

	U:    "u_in_w3",
	V:    "v_in_w3",
	W:    "w_in_wth",
	Pres: "pressure_in_wth",
	Thta: "theta",
	Dens: "rho",
	Temp: "temperature",
	SH:   "m_v",
}

// ERA5 is the naming convention of ECMWF ERA5 NetCDF downloads.
var ERA5 = Model{
	T:    "time",
	Z:    "level",
	Y:    "latitude",
	X:    "longitude",
	U:    "u10",
	V:    "v10",
	Temp: "t2m",
	PPN:  "tp",
}

var presets = map[string]Model{
	"um":    UM,
	"lfric": LFRic,
	"era5":  ERA5,
}

// ByName returns a preset by case-insensitive name.
func ByName(name string) (Model, error) {
	m, ok := presets[strings.ToLower(name)]
	if !ok {
		return Model{}, fmt.Errorf("unknown model %q", name)
	}
	return m, nil
}

// Load decodes a model from YAML. Keys absent from the document keep their
// UM values.
func Load(r io.Reader) (Model, error) {
	m := UM
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
		return Model{}, fmt.Errorf("cannot decode model: %w", err)
	}
	return m, nil
}

// LoadFile decodes a model from a YAML file.
func LoadFile(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return Model{}, err
	}
	defer f.Close()
	return Load(f)
}

// Axis resolves an axis role (t, z, y, x, lev, s, fcst_ref, fcst_prd) to a
// coordinate name. It returns false for unknown roles and unset names.
func (m Model) Axis(role string) (string, bool) {
	var name string
	switch strings.ToLower(role) {
	case "t":
		name = m.T
	case "z":
		name = m.Z
	case "y":
		name = m.Y
	case "x":
		name = m.X
	case "lev":
		name = m.Lev
	case "s":
		name = m.S
	case "fcst_ref":
		name = m.FcstRef
	case "fcst_prd":
		name = m.FcstPrd
	}
	return name, name != ""
}
