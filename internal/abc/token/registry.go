package token

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
)

// Constructor builds a token from its matched source text. A nil error and a
// nil token are never returned together; a non-nil error drops the match with
// a diagnostic instead of aborting the lex.
type Constructor func(src string, offset int) (*Token, error)

// Registration binds one recognition pattern to a token kind. Spanner and
// bracket kinds register twice: once for their start pattern and once for
// their stop pattern, the stop resolving to the generic KindParenStop (or the
// matching close kind for grace regions).
type Registration struct {
	Kind    Kind
	Pattern string
	// LineStartOnly restricts the pattern to positions immediately after a
	// newline (metadata field lines).
	LineStartOnly bool
	Construct     Constructor

	re *regexp.Regexp
}

// Registry is the priority-ordered pattern table the lexer consults. Order is
// a correctness requirement: multi-character literals (decorated symbols,
// compound bars, inline fields) must register before the single-character
// fallbacks they would otherwise be misread as.
type Registry struct {
	regs []*Registration
}

// spec is one row of the kind table the registry is built from. A row with an
// empty pattern is skipped with a diagnostic rather than failing the build.
type spec struct {
	kind          Kind
	pattern       string
	stopKind      Kind
	stopPattern   string
	lineStartOnly bool
	construct     Constructor
}

func defaultConstructor(kind Kind) Constructor {
	return func(src string, offset int) (*Token, error) {
		return &Token{Kind: kind, Src: src, Offset: offset}, nil
	}
}

func noteConstructor(src string, offset int) (*Token, error) {
	data, err := ParseNote(src)
	if err != nil {
		return nil, err
	}
	return &Token{Kind: KindNote, Src: src, Offset: offset, Note: data}, nil
}

func restConstructor(src string, offset int) (*Token, error) {
	data, err := ParseRest(src)
	if err != nil {
		return nil, err
	}
	return &Token{Kind: KindRest, Src: src, Offset: offset, Note: data}, nil
}

func tupletConstructor(src string, offset int) (*Token, error) {
	data, err := ParseTuplet(src)
	if err != nil {
		return nil, err
	}
	return &Token{Kind: KindTuplet, Src: src, Offset: offset, Tuplet: data}, nil
}

func brokenConstructor(src string, offset int) (*Token, error) {
	data, err := ParseBrokenRhythm(src)
	if err != nil {
		return nil, err
	}
	return &Token{Kind: KindBrokenRhythm, Src: src, Offset: offset, Broken: data}, nil
}

func fieldLineConstructor(src string, offset int) (*Token, error) {
	if len(src) < 2 || src[1] != ':' {
		return nil, fmt.Errorf("not a field line: %q", src)
	}
	return NewField(src, offset, src[:1], src[2:], false), nil
}

func inlineFieldConstructor(src string, offset int) (*Token, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(src, "["), "]")
	if len(body) < 2 || body[1] != ':' {
		return nil, fmt.Errorf("not an inline field: %q", src)
	}
	return NewField(src, offset, body[:1], body[2:], true), nil
}

// decorationKinds maps the name between the bangs of a !decoration! to its
// token kind. The crescendo/diminuendo close forms resolve to the generic
// paren-stop, matching how a ")" closes a slur.
var decorationKinds = map[string]Kind{
	"trill":          KindTrill,
	"fermata":        KindFermata,
	"invertedfermata": KindFermata,
	"accent":         KindAccent,
	"emphasis":       KindAccent,
	">":              KindAccent,
	"^":              KindStrongAccent,
	"marcato":        KindStrongAccent,
	"tenuto":         KindTenuto,
	"staccatissimo":  KindStaccatissimo,
	"wedge":          KindStaccatissimo,
	"upbow":          KindUpbow,
	"downbow":        KindDownbow,
	"coda":           KindCoda,
	"segno":          KindSegno,
	"turn":           KindTurn,
	"slide":          KindSlide,
	"roll":           KindRoll,
	"mordent":        KindMordent,
	"lowermordent":   KindMordent,
	"uppermordent":   KindInvertedMordent,
	"pralltriller":   KindInvertedMordent,
	"crescendo(":     KindCrescendoStart,
	"<(":             KindCrescendoStart,
	"crescendo)":     KindParenStop,
	"<)":             KindParenStop,
	"diminuendo(":    KindDiminuendoStart,
	">(":             KindDiminuendoStart,
	"diminuendo)":    KindParenStop,
	">)":             KindParenStop,
}

func decorationConstructor(src string, offset int) (*Token, error) {
	name := strings.Trim(src, "!")
	kind, ok := decorationKinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown decoration %q", src)
	}
	return &Token{Kind: kind, Src: src, Offset: offset}, nil
}

func chordConstructor(src string, offset int) (*Token, error) {
	interior := src[1:strings.LastIndex(src, "]")]
	if !strings.ContainsAny(interior, "abcdefgABCDEFG") {
		return nil, fmt.Errorf("chord with no pitch content: %q", src)
	}
	durationSrc := src[strings.LastIndex(src, "]")+1:]
	return &Token{
		Kind:   KindChord,
		Src:    src,
		Offset: offset,
		Note:   &NoteData{DurationSrc: durationSrc},
	}, nil
}

// kindTable is walked in order to build the registry. Bars register longest
// literal first; the decorated-symbol pattern precedes the bare "." staccato
// and the "(" tuplet pattern precedes the bare "(" slur start, so multi-
// character forms are never misclassified.
var kindTable = []spec{
	// Metadata. One generic line pattern and one inline pattern; the
	// constructor selects the concrete field kind from the tag letter. Match
	// rejects bar continuations ("C::C") before this row wins.
	{kind: KindFieldOther, pattern: `[A-Za-z]:[^\n]*`, lineStartOnly: true, construct: fieldLineConstructor},
	{kind: KindFieldOther, pattern: `\[[A-Za-z]:[^\]\n]*\]`, construct: inlineFieldConstructor},

	// Decorated symbols before any single-character fallback.
	{kind: KindTrill, pattern: `![^!\s]+!`, construct: decorationConstructor},

	// Tuplets before the bare slur-open.
	{kind: KindTuplet, pattern: `\([0-9]+(:[0-9]*)?(:[0-9]*)?`, construct: tupletConstructor},

	// Bars, longest form first. Compound sources expand in the lexer's bar
	// filter, never here.
	{kind: KindBarRepeatEnd, pattern: `:\|[12]`},
	{kind: KindBarRepeatEnd, pattern: `::`},
	{kind: KindBarRepeatStart, pattern: `\|:`},
	{kind: KindBarRepeatEnd, pattern: `:\|`},
	{kind: KindBarFinal, pattern: `\|\]`},
	{kind: KindBarDouble, pattern: `\|\|`},
	{kind: KindBarHeavyLight, pattern: `\[\|`},
	{kind: KindBar, pattern: `\|[12]`},
	{kind: KindRepeatBracket1, pattern: `\[1`},
	{kind: KindRepeatBracket2, pattern: `\[2`},
	{kind: KindBar, pattern: `\|`},

	// Chords after every other "[" form, with an optional duration suffix.
	{kind: KindChord, pattern: `\[[^\[\]\n]+\][0-9]*/*[0-9]*`, construct: chordConstructor},

	// Grace regions are a bracket pair: start and stop both register.
	{kind: KindGraceStart, pattern: `\{`, stopKind: KindGraceStop, stopPattern: `\}`},

	{kind: KindChordSymbol, pattern: `"[^"\n]*"`},
	{kind: KindBrokenRhythm, pattern: `>{1,3}|<{1,3}`, construct: brokenConstructor},

	{kind: KindNote, pattern: `[\^_=]*[a-gA-G][',]*[0-9]*/*[0-9]*`, construct: noteConstructor},
	{kind: KindRest, pattern: `[zxZX][0-9]*/*[0-9]*`, construct: restConstructor},

	{kind: KindRedefinableSymbol, pattern: `[~HLMOPSTuv]`},

	// Slur start and the generic paren stop that closes any open spanner.
	{kind: KindSlurStart, pattern: `\(`, stopKind: KindParenStop, stopPattern: `\)`},

	{kind: KindTie, pattern: `-`},
	{kind: KindStaccato, pattern: `\.`},
	{kind: KindVoiceOverlay, pattern: `&`},

	// Kinds below are produced only by expansion or decoration mapping and
	// deliberately carry no pattern of their own; the registry build skips
	// them without diagnostics because they never appear in the table.
}

// Build compiles the registry, skipping (with a diagnostic) any table row
// whose pattern is missing or fails to compile.
func Build() (*Registry, []diag.Diagnostic) {
	registry := &Registry{}
	var diags []diag.Diagnostic

	add := func(kind Kind, pattern string, lineStartOnly bool, construct Constructor) {
		if pattern == "" {
			diags = append(diags, diag.Warningf(diag.InvalidField, -1, "",
				"token kind %s has no registered pattern, skipping", kind))
			return
		}
		re, err := regexp.Compile(`^(?:` + pattern + `)`)
		if err != nil {
			diags = append(diags, diag.Warningf(diag.InvalidField, -1, "",
				"token kind %s pattern %q does not compile: %v", kind, pattern, err))
			return
		}
		if construct == nil {
			construct = defaultConstructor(kind)
		}
		registry.regs = append(registry.regs, &Registration{
			Kind:          kind,
			Pattern:       pattern,
			LineStartOnly: lineStartOnly,
			Construct:     construct,
			re:            re,
		})
	}

	for _, row := range kindTable {
		add(row.kind, row.pattern, row.lineStartOnly, row.construct)
		if row.stopPattern != "" {
			add(row.stopKind, row.stopPattern, false, nil)
		}
	}
	return registry, diags
}

// Match tries every registration in priority order at the head of src and
// returns the first match with its matched text. atLineStart gates the
// line-start-only registrations.
func (r *Registry) Match(src string, atLineStart bool) (*Registration, string) {
	for _, reg := range r.regs {
		if reg.LineStartOnly && !atLineStart {
			continue
		}
		if m := reg.re.FindString(src); m != "" {
			if reg.LineStartOnly && isBarContinuation(m) {
				continue
			}
			return reg, m
		}
	}
	return nil, ""
}

// isBarContinuation reports whether a field-line match is really a music line
// that begins with a pitch letter: when the character after the ":" opens a
// bar form, as in "C::C" or "C:|1C", the ":" belongs to the bar, not to a
// field separator.
func isBarContinuation(m string) bool {
	return len(m) > 2 && (m[2] == '|' || m[2] == ':')
}

// Len reports how many registrations compiled, exposed for registry tests.
func (r *Registry) Len() int { return len(r.regs) }
