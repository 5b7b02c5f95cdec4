package field

import (
	"fmt"
	"strconv"
	"strings"
)

// Tempo is the typed value of a Q: field: an optional referent note value,
// beats per minute, and any free text ("Allegro").
type Tempo struct {
	Referent  *Fraction `json:"referent,omitempty"`
	PerMinute int       `json:"per_minute,omitempty"`
	Text      string    `json:"text,omitempty"`
}

// ParseTempo interprets a Q: payload.
//
//	Q:1/4=120          -> quarter note, 120 bpm
//	Q:120              -> default referent, 120 bpm
//	Q:"Allegro" 1/4=132 -> text plus referent
func ParseTempo(payload string) (*Tempo, error) {
	s := strings.TrimSpace(payload)
	tempo := &Tempo{}

	// Leading or trailing quoted text.
	for {
		start := strings.Index(s, `"`)
		if start < 0 {
			break
		}
		end := strings.Index(s[start+1:], `"`)
		if end < 0 {
			return nil, fmt.Errorf("tempo: unterminated text in %q", payload)
		}
		text := s[start+1 : start+1+end]
		if tempo.Text != "" {
			tempo.Text += " "
		}
		tempo.Text += text
		s = strings.TrimSpace(s[:start] + s[start+2+end:])
	}
	if s == "" {
		if tempo.Text == "" {
			return nil, fmt.Errorf("tempo: empty payload")
		}
		return tempo, nil
	}

	if eq := strings.Index(s, "="); eq >= 0 {
		ref, err := ParseFraction(s[:eq])
		if err != nil {
			return nil, fmt.Errorf("tempo: %w", err)
		}
		bpm, err := strconv.Atoi(strings.TrimSpace(s[eq+1:]))
		if err != nil || bpm <= 0 {
			return nil, fmt.Errorf("tempo: invalid beats per minute in %q", payload)
		}
		tempo.Referent = &ref
		tempo.PerMinute = bpm
		return tempo, nil
	}

	bpm, err := strconv.Atoi(s)
	if err != nil || bpm <= 0 {
		return nil, fmt.Errorf("tempo: invalid payload %q", payload)
	}
	tempo.PerMinute = bpm
	return tempo, nil
}
