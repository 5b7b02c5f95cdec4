// Package token defines the tagged-variant token model of the ABC lexer and
// the pattern registry that maps source patterns to token constructors.
package token

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
)

// TieRole is a note's position in a tie chain, derived by the resolver.
type TieRole string

const (
	TieNone     TieRole = ""
	TieStart    TieRole = "start"
	TieContinue TieRole = "continue"
	TieStop     TieRole = "stop"
)

// NoteData is the payload of a note or rest token.
type NoteData struct {
	// Letter is the pitch letter in upper case; empty for rests.
	Letter string `json:"letter,omitempty"`
	// Accidental holds the explicit marks written on the note: "^", "^^",
	// "_", "__" or "=". Empty when the note carries no mark.
	Accidental string `json:"accidental,omitempty"`
	// Octave relative to the middle octave: "C" is 0, "c" is 1, each "'"
	// adds one, each "," subtracts one.
	Octave int `json:"octave"`
	// DurationSrc is the raw duration suffix ("", "2", "/", "3/4", ...).
	DurationSrc string `json:"duration_src,omitempty"`
	// MeasureRest marks "Z"/"X" whole-measure rests.
	MeasureRest bool `json:"measure_rest,omitempty"`
}

// FieldData is the payload of any metadata field token.
type FieldData struct {
	Tag    string `json:"tag"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// TupletData is the payload of a tuplet token plus the live countdown the
// resolver maintains while the tuplet is active.
type TupletData struct {
	Actual int `json:"actual"` // leading digit: notes played
	Normal int `json:"normal"` // notes' worth of time, 0 until resolved
	// NoteCount is how many following general notes the tuplet covers;
	// defaults to Actual. Decremented during resolution.
	NoteCount int `json:"note_count"`
}

// BrokenData carries the fixed duration multiplier pair of a broken-rhythm
// mark: Left applies to the note before the mark, Right to the note after.
type BrokenData struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Derived holds the fields the resolver fills in, exactly once, after lexing.
// Everything else on a Token is immutable from construction.
type Derived struct {
	// Duration in multiples of a quarter note, after the unit note length,
	// explicit duration suffix, broken rhythm and tuplet have been applied.
	Duration float64 `json:"duration,omitempty"`
	// Key is the active key signature when the note was resolved.
	Key *field.Key `json:"key,omitempty"`
	// Carried is an accidental inherited from an earlier note in the same
	// measure; rendered without forcing a visual accidental sign.
	Carried string `json:"carried,omitempty"`
	Tie     TieRole `json:"tie,omitempty"`
	Grace   bool    `json:"grace,omitempty"`
	// Tuplet points at the active tuplet's payload when this note belongs
	// to one.
	Tuplet *TupletData `json:"tuplet,omitempty"`
	// Spanners is a snapshot of the open spanner tokens at resolution time.
	Spanners []*Token `json:"-"`
	// Articulations and Expressions collected immediately before the note.
	Articulations []*Token `json:"-"`
	Expressions   []*Token `json:"-"`
	// Lyrics holds the syllables aligned to this note, one per verse.
	Lyrics []Lyric `json:"lyrics,omitempty"`
}

// Lyric is one syllable attached to a note by w: line alignment.
type Lyric struct {
	Verse int    `json:"verse"`
	Text  string `json:"text"`
	// Hyphenated marks a syllable whose word continues on the next note.
	Hyphenated bool `json:"hyphenated,omitempty"`
}

// Token is one immutable source fragment with a kind tag and kind-specific
// payload. Src always retains the exact source substring, including for the
// two tokens a compound bar mark expands into.
type Token struct {
	Kind   Kind   `json:"kind"`
	Src    string `json:"src"`
	Offset int    `json:"offset"`

	Note   *NoteData   `json:"note,omitempty"`
	Field  *FieldData  `json:"field,omitempty"`
	Tuplet *TupletData `json:"tuplet_data,omitempty"`
	Broken *BrokenData `json:"broken,omitempty"`
	// Inner holds recursively lexed interior tokens: chord contents for
	// KindChord, captured overlay tokens for KindVoiceOverlay.
	Inner []*Token `json:"inner,omitempty"`

	Derived Derived `json:"derived"`
}

func (t *Token) String() string {
	return fmt.Sprintf("<%s %q>", t.Kind, t.Src)
}

// IsInlineField reports whether the token is a metadata field written in
// [K:...] form inside a music line.
func (t *Token) IsInlineField() bool {
	return t.Kind.IsField() && t.Field != nil && t.Field.Inline
}

var noteRe = regexp.MustCompile(`^([\^_=]*)([a-gA-G])([',]*)([0-9]*/*[0-9]*)$`)

// ParseNote builds the payload of a note token from its source text.
func ParseNote(src string) (*NoteData, error) {
	m := noteRe.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("not a note: %q", src)
	}
	accidental := m[1]
	switch accidental {
	case "", "^", "^^", "_", "__", "=":
	default:
		return nil, fmt.Errorf("invalid accidental marks in %q", src)
	}
	letter := m[2]
	octave := 0
	if letter >= "a" {
		octave = 1
		letter = strings.ToUpper(letter)
	}
	for _, r := range m[3] {
		if r == '\'' {
			octave++
		} else {
			octave--
		}
	}
	if _, err := field.ParseDuration(m[4]); err != nil {
		return nil, err
	}
	return &NoteData{
		Letter:      letter,
		Accidental:  accidental,
		Octave:      octave,
		DurationSrc: m[4],
	}, nil
}

var restRe = regexp.MustCompile(`^([zxZX])([0-9]*/*[0-9]*)$`)

// ParseRest builds the payload of a rest token. "z" and "x" are beat rests,
// "Z" and "X" whole-measure rests.
func ParseRest(src string) (*NoteData, error) {
	m := restRe.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("not a rest: %q", src)
	}
	if _, err := field.ParseDuration(m[2]); err != nil {
		return nil, err
	}
	return &NoteData{
		DurationSrc: m[2],
		MeasureRest: m[1] == "Z" || m[1] == "X",
	}, nil
}

var tupletRe = regexp.MustCompile(`^\(([0-9]+)(?::([0-9]*))?(?::([0-9]*))?$`)

// ParseTuplet builds the payload of a tuplet token. Ratio defaults are left
// to the resolver, which needs the active meter; only the explicit parts of
// "(p:q:r" are recorded here. The leading digit is validated at resolution
// time so the InvalidTuplet diagnostic carries resolver context.
func ParseTuplet(src string) (*TupletData, error) {
	m := tupletRe.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("not a tuplet: %q", src)
	}
	actual, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid tuplet digit in %q", src)
	}
	data := &TupletData{Actual: actual, NoteCount: actual}
	if m[2] != "" {
		if data.Normal, err = strconv.Atoi(m[2]); err != nil {
			return nil, fmt.Errorf("invalid tuplet normal in %q", src)
		}
	}
	if m[3] != "" {
		if data.NoteCount, err = strconv.Atoi(m[3]); err != nil {
			return nil, fmt.Errorf("invalid tuplet count in %q", src)
		}
	}
	return data, nil
}

// brokenFactors maps a broken-rhythm source string to its (left, right)
// duration multiplier pair.
var brokenFactors = map[string]BrokenData{
	">":   {Left: 1.5, Right: 0.5},
	">>":  {Left: 1.75, Right: 0.25},
	">>>": {Left: 1.875, Right: 0.125},
	"<":   {Left: 0.5, Right: 1.5},
	"<<":  {Left: 0.25, Right: 1.75},
	"<<<": {Left: 0.125, Right: 1.875},
}

// ParseBrokenRhythm looks up the factor pair for a broken-rhythm mark.
func ParseBrokenRhythm(src string) (*BrokenData, error) {
	data, ok := brokenFactors[src]
	if !ok {
		return nil, fmt.Errorf("not a broken rhythm mark: %q", src)
	}
	return &data, nil
}

// fieldKinds maps a field tag letter to its Kind. Tags not listed here
// become KindFieldOther.
var fieldKinds = map[string]Kind{
	"X": KindFieldReference,
	"T": KindFieldTitle,
	"C": KindFieldComposer,
	"O": KindFieldOrigin,
	"R": KindFieldRhythm,
	"K": KindFieldKey,
	"M": KindFieldMeter,
	"L": KindFieldUnitNoteLength,
	"Q": KindFieldTempo,
	"V": KindFieldVoice,
	"U": KindFieldUserDefined,
	"I": KindFieldInstruction,
	"w": KindFieldLyric,
	"P": KindFieldPart,
}

// FieldKind returns the Kind for a metadata tag letter.
func FieldKind(tag string) Kind {
	if k, ok := fieldKinds[tag]; ok {
		return k
	}
	return KindFieldOther
}

// NewField builds a metadata field token from a tag and payload.
func NewField(src string, offset int, tag, value string, inline bool) *Token {
	return &Token{
		Kind:   FieldKind(tag),
		Src:    src,
		Offset: offset,
		Field:  &FieldData{Tag: tag, Value: strings.TrimSpace(value), Inline: inline},
	}
}

// ChordSymbolText strips the quotes from a chord symbol token's source.
func ChordSymbolText(src string) string {
	return strings.Trim(src, `"`)
}
