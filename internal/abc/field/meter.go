package field

import (
	"fmt"
	"strconv"
	"strings"
)

// Meter is the typed value of an M: field. Numerators holds every additive
// numerator term ("3+2/8" keeps both), Symbol records the shorthand forms.
type Meter struct {
	Numerators  []int  `json:"numerators"`
	Denominator int    `json:"denominator"`
	Symbol      string `json:"symbol,omitempty"` // "C", "C|" or "none"
}

// NumeratorSum is the combined beat count.
func (m *Meter) NumeratorSum() int {
	total := 0
	for _, n := range m.Numerators {
		total += n
	}
	return total
}

// Ratio is numerator sum over denominator, used to derive a default unit
// note length when none has been declared.
func (m *Meter) Ratio() float64 {
	if m == nil || m.Denominator == 0 {
		return 0
	}
	return float64(m.NumeratorSum()) / float64(m.Denominator)
}

// IsCompound reports whether each beat divides in three (6/8, 9/8, 12/8),
// which selects the "3" entries of the tuplet default table.
func (m *Meter) IsCompound() bool {
	if m == nil {
		return false
	}
	sum := m.NumeratorSum()
	return sum > 3 && sum%3 == 0
}

// DefaultUnitNoteLength derives the L: value implied by this meter when the
// tune declares none: below 0.75 a sixteenth, otherwise an eighth. Free meter
// has no ratio and keeps the eighth.
func (m *Meter) DefaultUnitNoteLength() Fraction {
	if ratio := m.Ratio(); ratio > 0 && ratio < 0.75 {
		return Fraction{Num: 1, Den: 16}
	}
	return Fraction{Num: 1, Den: 8}
}

func (m *Meter) String() string {
	if m.Symbol != "" {
		return m.Symbol
	}
	parts := make([]string, len(m.Numerators))
	for i, n := range m.Numerators {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("%s/%d", strings.Join(parts, "+"), m.Denominator)
}

// ParseMeter interprets an M: payload: "4/4", "6/8", "3+2/8", "C" (common
// time), "C|" (cut time) or "none" (free meter).
func ParseMeter(payload string) (*Meter, error) {
	s := strings.TrimSpace(payload)
	switch s {
	case "C":
		return &Meter{Numerators: []int{4}, Denominator: 4, Symbol: "C"}, nil
	case "C|":
		return &Meter{Numerators: []int{2}, Denominator: 2, Symbol: "C|"}, nil
	case "none", "":
		// Free meter: no beat structure at all.
		return &Meter{Symbol: "none"}, nil
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("meter: not an n/d value: %q", payload)
	}
	var numerators []int
	for _, term := range strings.Split(parts[0], "+") {
		n, err := strconv.Atoi(strings.TrimSpace(strings.Trim(term, "()")))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("meter: invalid numerator %q", payload)
		}
		numerators = append(numerators, n)
	}
	den, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || den <= 0 {
		return nil, fmt.Errorf("meter: invalid denominator %q", payload)
	}
	return &Meter{Numerators: numerators, Denominator: den}, nil
}
