// Package units implements the small subset of UDUNITS-style unit
// expressions needed to carry physical units through cube arithmetic.
//
// A Unit is a product of symbols raised to integer powers, e.g. "m s-2" or
// "J K-1 mol-1". Symbols are opaque: no prefix or conversion algebra is
// attempted, so "hPa" and "Pa" are different units. Time coordinates use
// reference units such as "hours since 1900-01-01 00:00:00".
package units

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type term struct {
	sym string
	exp int
}

// Unit is an immutable unit expression.
type Unit struct {
	terms []term

	// Set for "<step> since <epoch>" units.
	ref   bool
	step  time.Duration
	epoch time.Time
}

// Dimensionless is the unit "1".
var Dimensionless = Unit{}

// Parse parses a unit expression. Terms are separated by whitespace, "." or
// "*"; everything after a "/" is in the denominator. Exponents follow the
// symbol directly ("m2", "s-1") or after "^" or "**". The empty string and
// "1" are dimensionless.
func Parse(s string) (Unit, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " since "); i >= 0 {
		return parseReference(strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(" since "):]))
	}
	s = strings.ReplaceAll(s, "**", "^")
	s = strings.NewReplacer("/", " / ", "*", " ", ".", " ").Replace(s)

	var u Unit
	sign := 1
	for _, tok := range strings.Fields(s) {
		if tok == "/" {
			if sign < 0 {
				return Unit{}, fmt.Errorf("cannot parse unit %q: more than one '/'", s)
			}
			sign = -1
			continue
		}
		sym, exp, err := parseTerm(tok)
		if err != nil {
			return Unit{}, fmt.Errorf("cannot parse unit %q: %w", s, err)
		}
		if sym == "" {
			continue
		}
		u = u.withTerm(sym, sign*exp)
	}
	return u, nil
}

// MustParse is like Parse but panics if the expression cannot be parsed.
func MustParse(s string) Unit {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func parseTerm(tok string) (string, int, error) {
	i := strings.IndexFunc(tok, func(r rune) bool {
		return !(unicode.IsLetter(r) || r == '_' || r == '%')
	})
	if i < 0 {
		return tok, 1, nil
	}
	sym, rest := tok[:i], strings.TrimPrefix(tok[i:], "^")
	if sym == "" {
		if rest == "1" {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("unsupported scale factor %q", tok)
	}
	exp, err := strconv.Atoi(rest)
	if err != nil {
		return "", 0, fmt.Errorf("bad exponent in %q", tok)
	}
	return sym, exp, nil
}

var timeSteps = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-1-2 15:4:5",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
}

func parseReference(step, epoch string) (Unit, error) {
	d, ok := timeSteps[strings.ToLower(step)]
	if !ok {
		return Unit{}, fmt.Errorf("cannot parse unit %q: unknown time step", step+" since "+epoch)
	}
	epoch = strings.TrimSuffix(strings.TrimSuffix(epoch, " UTC"), ".0")
	for _, layout := range epochLayouts {
		t, err := time.ParseInLocation(layout, epoch, time.UTC)
		if err == nil {
			return Unit{terms: []term{{sym: step, exp: 1}}, ref: true, step: d, epoch: t}, nil
		}
	}
	return Unit{}, fmt.Errorf("cannot parse unit %q: bad reference date", step+" since "+epoch)
}

func (u Unit) withTerm(sym string, exp int) Unit {
	terms := make([]term, 0, len(u.terms)+1)
	found := false
	for _, t := range u.terms {
		if t.sym == sym {
			found = true
			t.exp += exp
		}
		if t.exp != 0 {
			terms = append(terms, t)
		}
	}
	if !found && exp != 0 {
		terms = append(terms, term{sym: sym, exp: exp})
	}
	return Unit{terms: terms}
}

// Mul returns u*v. Time references degrade to their step unit.
func (u Unit) Mul(v Unit) Unit {
	res := Unit{terms: append([]term(nil), u.terms...)}
	for _, t := range v.terms {
		res = res.withTerm(t.sym, t.exp)
	}
	return res
}

// Div returns u/v.
func (u Unit) Div(v Unit) Unit {
	return u.Mul(v.Pow(-1))
}

// Pow returns u raised to the integer power n.
func (u Unit) Pow(n int) Unit {
	var res Unit
	for _, t := range u.terms {
		res = res.withTerm(t.sym, t.exp*n)
	}
	return res
}

// IsDimensionless reports whether u has no terms.
func (u Unit) IsDimensionless() bool {
	return len(u.terms) == 0 && !u.ref
}

// Equal reports whether u and v describe the same unit, regardless of term
// order.
func (u Unit) Equal(v Unit) bool {
	if u.ref != v.ref {
		return false
	}
	if u.ref {
		return u.step == v.step && u.epoch.Equal(v.epoch)
	}
	if len(u.terms) != len(v.terms) {
		return false
	}
	exps := make(map[string]int, len(u.terms))
	for _, t := range u.terms {
		exps[t.sym] = t.exp
	}
	for _, t := range v.terms {
		if exps[t.sym] != t.exp {
			return false
		}
	}
	return true
}

// TimeReference returns the step and epoch of a "<step> since <epoch>" unit.
func (u Unit) TimeReference() (step time.Duration, epoch time.Time, ok bool) {
	return u.step, u.epoch, u.ref
}

// Date converts a value expressed in the time reference unit u to a time.
func (u Unit) Date(v float64) (time.Time, bool) {
	if !u.ref {
		return time.Time{}, false
	}
	return u.epoch.Add(time.Duration(v * float64(u.step))), true
}

func (u Unit) String() string {
	if u.ref {
		return fmt.Sprintf("%s since %s", u.terms[0].sym, u.epoch.Format("2006-01-02 15:04:05"))
	}
	if len(u.terms) == 0 {
		return "1"
	}
	parts := make([]string, len(u.terms))
	for i, t := range u.terms {
		if t.exp == 1 {
			parts[i] = t.sym
		} else {
			parts[i] = t.sym + strconv.Itoa(t.exp)
		}
	}
	return strings.Join(parts, " ")
}
