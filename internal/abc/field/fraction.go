// Package field holds the per-tag metadata interpreters: pure functions from a
// raw field payload to a typed, queryable value. They are invoked both by the
// semantic resolver (to update its context) and by external renderers, so they
// form a stable surface of their own and carry no state.
package field

import (
	"fmt"
	"strconv"
	"strings"
)

// Fraction is an exact n/d pair, used for unit note lengths and tempo
// referents.
type Fraction struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Value returns the fraction as a float.
func (f Fraction) Value() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// ParseDuration interprets the duration suffix of a note or rest token as a
// multiplier of the active unit note length:
//
//	""    -> 1      "2"   -> 2      "3/4" -> 0.75
//	"/"   -> 0.5    "//"  -> 0.25   "///" -> 0.125
//	"3/"  -> 1.5    "/2"  -> 0.5    "3/2" -> 1.5
func ParseDuration(s string) (float64, error) {
	if s == "" {
		return 1, nil
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	num := 1.0
	if i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil || n == 0 {
			return 0, fmt.Errorf("invalid duration numerator %q", s)
		}
		num = float64(n)
	}
	rest := s[i:]
	if rest == "" {
		return num, nil
	}
	// A run of bare slashes halves once per slash.
	if strings.Trim(rest, "/") == "" {
		for range rest {
			num /= 2
		}
		return num, nil
	}
	if rest[0] != '/' {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	den, err := strconv.Atoi(rest[1:])
	if err != nil || den == 0 {
		return 0, fmt.Errorf("invalid duration denominator %q", s)
	}
	return num / float64(den), nil
}

// ParseFraction parses a strict "n/d" payload such as the L: field value.
func ParseFraction(payload string) (Fraction, error) {
	parts := strings.SplitN(strings.TrimSpace(payload), "/", 2)
	if len(parts) != 2 {
		return Fraction{}, fmt.Errorf("not an n/d fraction: %q", payload)
	}
	num, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Fraction{}, fmt.Errorf("invalid fraction numerator %q", payload)
	}
	den, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || den == 0 {
		return Fraction{}, fmt.Errorf("invalid fraction denominator %q", payload)
	}
	return Fraction{Num: num, Den: den}, nil
}

// ParseUnitNoteLength interprets an L: payload. Only a plain n/d value is
// accepted; anything else is an invalid field.
func ParseUnitNoteLength(payload string) (Fraction, error) {
	f, err := ParseFraction(payload)
	if err != nil {
		return Fraction{}, fmt.Errorf("unit note length: %w", err)
	}
	if f.Num <= 0 {
		return Fraction{}, fmt.Errorf("unit note length must be positive: %q", payload)
	}
	return f, nil
}
