// Package resolve walks a voice's token stream once, left to right, carrying
// the mutable musical context and filling in every token's derived fields:
// durations, carried accidentals, tie roles, tuplet membership, grace flags,
// spanner snapshots and lyric alignment. Chord interiors and voice overlays
// resolve through nested instances seeded with copied context, never shared
// mutable state.
package resolve

import (
	"fmt"

	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// Options seed a resolution run.
type Options struct {
	// Version applies when the stream carries no abc-version instruction.
	Version field.Version
	// Propagation overrides the version-derived accidental propagation
	// default; a PROPAGATE-ACCIDENTALS instruction in the stream still wins
	// from its position onward.
	Propagation field.PropagationMode
}

// propagationFor picks the default accidental propagation mode for a format
// version: "not" below 2.0.0, "pitch" from 2.0.0 on.
func propagationFor(v field.Version) field.PropagationMode {
	if v.AtLeast(2, 0, 0) {
		return field.PropagatePitch
	}
	return field.PropagateNot
}

// Context is the mutable state one Resolver instance owns. It is never shared
// between instances: nested resolvers (chords, overlays) receive copies of
// the numeric and key context and their own maps.
type Context struct {
	Key         *field.Key
	UnitLength  *field.Fraction // nil until L:, a meter default, or fatal
	Meter       *field.Meter
	Version     field.Version
	Propagation field.PropagationMode
	// propagationPinned is set once an explicit option or instruction chose
	// the mode, so later version instructions stop adjusting the default.
	propagationPinned bool

	openSpanners  []*token.Token
	activeTuplet  *token.TupletData
	pendingTie    bool
	pendingGrace  bool
	pendingBroken *token.BrokenData
	pendingArtic  []*token.Token
	pendingExpr   []*token.Token
	lastNote      *token.Token

	// carried accidentals for the current measure, keyed per propagation
	// mode (letter, or letter+octave).
	carried map[string]string

	// user-defined symbol table: symbol letter to its lexed definition.
	userDefs map[string][]*token.Token

	// lyric alignment state: general notes (and nil bar sentinels) seen
	// since the last first-verse lyric line.
	lyricNotes   []*token.Token
	lyricAlign   []*token.Token
	lyricVerse   int
	lastWasLyric bool

	// overlay counter, reset at every bar.
	overlayCount int
}

func newContext(opts Options) *Context {
	version := opts.Version
	if version.IsZero() {
		version = field.DefaultVersion
	}
	propagation := opts.Propagation
	pinned := propagation != ""
	if propagation == "" {
		propagation = propagationFor(version)
	}
	return &Context{
		Version:           version,
		Propagation:       propagation,
		propagationPinned: pinned,
		carried:           make(map[string]string),
		userDefs:          make(map[string][]*token.Token),
	}
}

// childContext copies the numeric and key context for a nested resolver and
// gives it fresh pending state. shareCarried additionally copies the current
// carried-accidental map by value, which chord interiors need so interior
// notes see the measure's accidentals without mutating the outer map.
func (c *Context) childContext(shareCarried bool) *Context {
	child := &Context{
		Key:               c.Key,
		UnitLength:        c.UnitLength,
		Meter:             c.Meter,
		Version:           c.Version,
		Propagation:       c.Propagation,
		propagationPinned: c.propagationPinned,
		carried:           make(map[string]string),
		userDefs:          make(map[string][]*token.Token, len(c.userDefs)),
	}
	if shareCarried {
		for k, v := range c.carried {
			child.carried[k] = v
		}
	}
	for k, v := range c.userDefs {
		child.userDefs[k] = v
	}
	return child
}

// carriedKey builds the carried-accidental map key for a note under the
// active propagation mode.
func (c *Context) carriedKey(note *token.NoteData) string {
	if c.Propagation == field.PropagateOctave {
		return fmt.Sprintf("%s@%d", note.Letter, note.Octave)
	}
	return note.Letter
}

// resetMeasure clears the per-measure state at a bar token.
func (c *Context) resetMeasure() {
	c.carried = make(map[string]string)
	c.overlayCount = 0
}
