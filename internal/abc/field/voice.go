package field

import (
	"fmt"
	"strings"
)

// Voice is the typed value of a V: field. ID "*" is the broadcast marker that
// addresses every voice rather than switching to one.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Subname string `json:"subname,omitempty"`
	Stem    string `json:"stem,omitempty"` // "up" or "down"
	Clef    *Clef  `json:"clef,omitempty"`
}

// Broadcast reports whether this voice field addresses all voices.
func (v *Voice) Broadcast() bool { return v != nil && v.ID == "*" }

// ParseVoice interprets a V: payload: an id followed by optional key=value
// properties, where quoted values may contain spaces.
//
//	V:1 name="Violin I" snm="V1" stem=up clef=treble
func ParseVoice(payload string) (*Voice, error) {
	s := strings.TrimSpace(payload)
	if s == "" {
		return nil, fmt.Errorf("voice: empty payload")
	}
	words, err := splitQuoted(s)
	if err != nil {
		return nil, fmt.Errorf("voice: %w", err)
	}
	voice := &Voice{ID: words[0]}
	if strings.Contains(voice.ID, "=") {
		return nil, fmt.Errorf("voice: missing id in %q", payload)
	}
	for _, word := range words[1:] {
		eq := strings.Index(word, "=")
		if eq < 0 {
			return nil, fmt.Errorf("voice: unrecognized property %q", word)
		}
		k, v := word[:eq], strings.Trim(word[eq+1:], `"`)
		switch k {
		case "name", "nm":
			voice.Name = v
		case "subname", "snm", "sname":
			voice.Subname = v
		case "stem":
			if v != "up" && v != "down" {
				return nil, fmt.Errorf("voice: invalid stem %q", v)
			}
			voice.Stem = v
		case "clef":
			clef, err := ParseClef(v)
			if err != nil {
				return nil, err
			}
			voice.Clef = clef
		default:
			// Unknown properties pass through silently; the ABC standard
			// leaves the property set open.
		}
	}
	return voice, nil
}

// splitQuoted splits on spaces but keeps quoted spans intact.
func splitQuoted(s string) ([]string, error) {
	var words []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuote:
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	return words, nil
}
