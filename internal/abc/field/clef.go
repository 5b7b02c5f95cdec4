package field

import (
	"fmt"
	"strconv"
	"strings"
)

// Clef is the typed clef description extracted from K: or V: payloads.
type Clef struct {
	Name      string `json:"name"`
	Octave    int    `json:"octave,omitempty"`    // +1/-1 for treble8va style clefs
	Transpose int    `json:"transpose,omitempty"` // chromatic transposition in semitones
}

var clefNames = map[string]bool{
	"treble": true, "bass": true, "alto": true, "tenor": true,
	"baritone": true, "mezzosoprano": true, "soprano": true,
	"perc": true, "none": true,
}

// ParseClef interprets a clef word: a bare name optionally followed by +8/-8
// octave marks, or key=value suffixes used inside V: payloads
// ("treble-8", "bass transpose=-12").
func ParseClef(payload string) (*Clef, error) {
	s := strings.TrimSpace(payload)
	if s == "" {
		return nil, fmt.Errorf("clef: empty payload")
	}
	clef := &Clef{}

	words := strings.Fields(s)
	name := words[0]
	switch {
	case strings.HasSuffix(name, "+8"):
		clef.Octave = 1
		name = strings.TrimSuffix(name, "+8")
	case strings.HasSuffix(name, "-8"):
		clef.Octave = -1
		name = strings.TrimSuffix(name, "-8")
	}
	if !clefNames[strings.ToLower(name)] {
		return nil, fmt.Errorf("clef: unknown name %q", payload)
	}
	clef.Name = strings.ToLower(name)

	for _, word := range words[1:] {
		switch {
		case strings.HasPrefix(word, "transpose="):
			n, err := strconv.Atoi(word[len("transpose="):])
			if err != nil {
				return nil, fmt.Errorf("clef: invalid transpose in %q", payload)
			}
			clef.Transpose = n
		case strings.HasPrefix(word, "octave="):
			n, err := strconv.Atoi(word[len("octave="):])
			if err != nil {
				return nil, fmt.Errorf("clef: invalid octave in %q", payload)
			}
			clef.Octave = n
		default:
			return nil, fmt.Errorf("clef: unrecognized word %q", word)
		}
	}
	return clef, nil
}
