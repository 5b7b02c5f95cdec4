package field

import (
	"fmt"
	"strings"
)

// Key is the typed value of a K: field: a tonic and mode with the altered
// pitch set they imply, after merging any explicit accidentals listed in the
// payload. When the explicit accidentals change the mode's own set, the key
// loses its tonic/mode identity and only the accidental set remains (Bare).
type Key struct {
	Tonic string `json:"tonic,omitempty"`
	Mode  string `json:"mode,omitempty"`
	// Accidentals maps an upper-case pitch letter to "^", "^^", "_", "__"
	// or "=". Naturals listed in the payload remove entries.
	Accidentals map[string]string `json:"accidentals,omitempty"`
	// Bare is set when the explicit accidental list diverged from the
	// tonic/mode signature.
	Bare bool `json:"bare,omitempty"`
	// OctaveShift carries an octave=n transposition hint from the payload.
	OctaveShift int `json:"octave_shift,omitempty"`
	Clef        *Clef `json:"clef,omitempty"`
}

// Alter returns the accidental active for a pitch letter under this key, or
// the empty string.
func (k *Key) Alter(letter string) string {
	if k == nil || k.Accidentals == nil {
		return ""
	}
	return k.Accidentals[strings.ToUpper(letter)]
}

// fifths positions of major tonics on the circle of fifths.
var tonicFifths = map[string]int{
	"C": 0, "G": 1, "D": 2, "A": 3, "E": 4, "B": 5,
	"F#": 6, "C#": 7,
	"F": -1, "BB": -2, "EB": -3, "AB": -4, "DB": -5, "GB": -6, "CB": -7,
}

// mode offsets relative to the major scale on the same tonic.
var modeOffsets = map[string]int{
	"":           0,
	"major":      0,
	"ionian":     0,
	"mixolydian": -1,
	"dorian":     -2,
	"minor":      -3,
	"aeolian":    -3,
	"phrygian":   -4,
	"lydian":     1,
	"locrian":    -5,
}

// order in which sharps and flats accumulate in a signature.
var (
	sharpOrder = []string{"F", "C", "G", "D", "A", "E", "B"}
	flatOrder  = []string{"B", "E", "A", "D", "G", "C", "F"}
)

// signatureFor computes the altered pitch set implied by a tonic and mode.
func signatureFor(tonic, mode string) (map[string]string, error) {
	base, ok := tonicFifths[strings.ToUpper(tonic)]
	if !ok {
		return nil, fmt.Errorf("unknown tonic %q", tonic)
	}
	offset, ok := modeOffsets[strings.ToLower(mode)]
	if !ok {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	fifths := base + offset
	if fifths < -7 || fifths > 7 {
		return nil, fmt.Errorf("key %s %s is beyond seven accidentals", tonic, mode)
	}
	set := make(map[string]string)
	if fifths > 0 {
		for _, letter := range sharpOrder[:fifths] {
			set[letter] = "^"
		}
	} else if fifths < 0 {
		for _, letter := range flatOrder[:-fifths] {
			set[letter] = "_"
		}
	}
	return set, nil
}

// canonical mode spellings for the abbreviations ABC allows (first three
// letters are significant; "m" alone means minor).
func normalizeMode(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	if lower == "m" {
		return "minor", true
	}
	if len(lower) >= 3 {
		lower = lower[:3]
	}
	switch lower {
	case "":
		return "major", true
	case "maj", "ion":
		return "major", true
	case "min", "aeo":
		return "minor", true
	case "mix":
		return "mixolydian", true
	case "dor":
		return "dorian", true
	case "phr":
		return "phrygian", true
	case "lyd":
		return "lydian", true
	case "loc":
		return "locrian", true
	}
	return "", false
}

// ParseKey interprets a K: payload: tonic, optional mode, optional explicit
// accidentals, optional clef and octave hints.
//
//	K:D            -> D major, F# C#
//	K:Em           -> E minor, F#
//	K:D Phr ^f     -> bare accidental set (mode set changed by ^f)
//	K:none         -> empty key
func ParseKey(payload string) (*Key, error) {
	fields := strings.Fields(strings.TrimSpace(payload))
	key := &Key{Accidentals: make(map[string]string)}
	if len(fields) == 0 {
		return key, nil
	}

	head := fields[0]
	rest := fields[1:]
	if strings.EqualFold(head, "none") {
		key.Tonic = ""
	} else {
		tonic, mode, err := splitTonicMode(head)
		if err != nil {
			return nil, err
		}
		// A separate mode word may follow the tonic: "K:D dorian".
		if mode == "" && len(rest) > 0 {
			if normalized, ok := normalizeMode(rest[0]); ok {
				mode = normalized
				rest = rest[1:]
			}
		}
		if mode == "" {
			mode = "major"
		}
		set, err := signatureFor(tonic, mode)
		if err != nil {
			return nil, err
		}
		key.Tonic = tonic
		key.Mode = mode
		key.Accidentals = set
	}

	modal := cloneAccidentals(key.Accidentals)
	for _, word := range rest {
		switch {
		case strings.HasPrefix(word, "clef="):
			clef, err := ParseClef(word[len("clef="):])
			if err != nil {
				return nil, err
			}
			key.Clef = clef
		case strings.HasPrefix(word, "octave="):
			var shift int
			if _, err := fmt.Sscanf(word, "octave=%d", &shift); err != nil {
				return nil, fmt.Errorf("invalid octave hint %q", word)
			}
			key.OctaveShift = shift
		case isExplicitAccidental(word):
			applyAccidental(key.Accidentals, word)
		default:
			// Clef names may appear bare ("K:C treble").
			if clef, err := ParseClef(word); err == nil {
				key.Clef = clef
			} else {
				return nil, fmt.Errorf("unrecognized key payload word %q", word)
			}
		}
	}

	if !accidentalsEqual(modal, key.Accidentals) {
		key.Bare = true
		key.Tonic = ""
		key.Mode = ""
	}
	return key, nil
}

// splitTonicMode separates "Em" style heads into tonic and mode.
func splitTonicMode(head string) (string, string, error) {
	if head == "" {
		return "", "", fmt.Errorf("empty key tonic")
	}
	letter := strings.ToUpper(head[:1])
	if letter < "A" || letter > "G" {
		return "", "", fmt.Errorf("invalid key tonic %q", head)
	}
	i := 1
	tonic := letter
	if i < len(head) && (head[i] == '#' || head[i] == 'b') {
		if head[i] == '#' {
			tonic += "#"
		} else {
			tonic += "b"
		}
		i++
	}
	if i == len(head) {
		return tonic, "", nil
	}
	mode, ok := normalizeMode(head[i:])
	if !ok {
		return "", "", fmt.Errorf("invalid key mode in %q", head)
	}
	return tonic, mode, nil
}

func isExplicitAccidental(word string) bool {
	if len(word) < 2 {
		return false
	}
	marks := strings.TrimRight(word, "abcdefgABCDEFG")
	if len(word)-len(marks) != 1 {
		return false
	}
	switch marks {
	case "^", "^^", "_", "__", "=":
		return true
	}
	return false
}

// applyAccidental merges one explicit accidental word ("^f", "=c", "_b") into
// a signature set: naturals remove the letter, anything else overwrites.
func applyAccidental(set map[string]string, word string) {
	letter := strings.ToUpper(word[len(word)-1:])
	mark := word[:len(word)-1]
	if mark == "=" {
		delete(set, letter)
		return
	}
	set[letter] = mark
}

func cloneAccidentals(set map[string]string) map[string]string {
	out := make(map[string]string, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}

func accidentalsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
