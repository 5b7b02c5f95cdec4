package resolve

import (
	"testing"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/lexer"
	"github.com/Conceptual-Machines/abc-api/internal/abc/structure"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resolveSource lexes a fragment into a single voice and resolves it.
func resolveSource(t *testing.T, src string, opts Options) (*structure.Voice, []diag.Diagnostic, error) {
	t.Helper()
	tokens, lexDiags, err := lexer.Lex(src)
	require.NoError(t, err)
	require.Empty(t, lexDiags, "fixture should lex cleanly")

	voice := &structure.Voice{ID: structure.DefaultVoiceID, Stream: tokens}
	diags, resolveErr := ResolveVoice(voice, opts)
	return voice, diags, resolveErr
}

// generalNotes filters the resolved stream down to notes, rests and chords.
func generalNotes(stream structure.Stream) []*token.Token {
	var out []*token.Token
	for _, t := range stream {
		if t.Kind.IsGeneralNote() {
			out = append(out, t)
		}
	}
	return out
}

func TestResolve_DurationsFromUnitLength(t *testing.T) {
	voice, diags, err := resolveSource(t, "L:1/4\nK:C\nC C2 C/ C3/4", Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 4)
	assert.InDelta(t, 1.0, notes[0].Derived.Duration, 1e-9)
	assert.InDelta(t, 2.0, notes[1].Derived.Duration, 1e-9)
	assert.InDelta(t, 0.5, notes[2].Derived.Duration, 1e-9)
	assert.InDelta(t, 0.75, notes[3].Derived.Duration, 1e-9)
}

func TestResolve_MeterDerivesUnitLength(t *testing.T) {
	// M:4/4 without L: implies L:1/8 (ratio >= 0.75).
	voice, _, err := resolveSource(t, "M:4/4\nK:C\nC", Options{})
	require.NoError(t, err)
	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 1)
	assert.InDelta(t, 0.5, notes[0].Derived.Duration, 1e-9)

	// M:2/4 implies L:1/16.
	voice, _, err = resolveSource(t, "M:2/4\nK:C\nC", Options{})
	require.NoError(t, err)
	notes = generalNotes(voice.Stream)
	assert.InDelta(t, 0.25, notes[0].Derived.Duration, 1e-9)
}

func TestResolve_NoteBeforeContextIsFatal(t *testing.T) {
	_, _, err := resolveSource(t, "K:C\nC", Options{})
	require.Error(t, err)

	var resolveErr *diag.Error
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, diag.MissingContext, resolveErr.Code)
}

func TestResolve_ExplicitUnitLengthWins(t *testing.T) {
	voice, _, err := resolveSource(t, "M:4/4\nL:1/4\nK:C\nC", Options{})
	require.NoError(t, err)
	notes := generalNotes(voice.Stream)
	assert.InDelta(t, 1.0, notes[0].Derived.Duration, 1e-9)
}

func TestResolve_AccidentalCarryPitchMode(t *testing.T) {
	opts := Options{Version: field.Version{Major: 2, Minor: 1}}
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n^F F f | F", opts)
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 4)

	assert.Equal(t, "^", notes[0].Note.Accidental)
	assert.Empty(t, notes[0].Derived.Carried) // explicit, not carried

	// Pitch mode carries across octaves within the measure.
	assert.Equal(t, "^", notes[1].Derived.Carried)
	assert.Equal(t, "^", notes[2].Derived.Carried)

	// The bar resets the carried set.
	assert.Empty(t, notes[3].Derived.Carried)
}

func TestResolve_AccidentalCarryOctaveMode(t *testing.T) {
	opts := Options{Propagation: field.PropagateOctave}
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n^F F f", opts)
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 3)
	assert.Equal(t, "^", notes[1].Derived.Carried)
	assert.Empty(t, notes[2].Derived.Carried) // different octave
}

func TestResolve_AccidentalDefaultIsNotBelow2(t *testing.T) {
	// Default version (1.6) propagates nothing.
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n^F F", Options{})
	require.NoError(t, err)
	notes := generalNotes(voice.Stream)
	assert.Empty(t, notes[1].Derived.Carried)
}

func TestResolve_PropagationInstructionWins(t *testing.T) {
	// The directive overrides the version-derived default mid-stream.
	src := "%%propagate-accidentals pitch\nL:1/4\nK:C\n^F F"
	voice, _, err := resolveSource(t, src, Options{})
	require.NoError(t, err)
	notes := generalNotes(voice.Stream)
	assert.Equal(t, "^", notes[1].Derived.Carried)
}

func TestResolve_PropagationInstructionKeyCase(t *testing.T) {
	// The same directive arrives lowercase from %%lines and uppercase from
	// I: fields; both spellings must reach the propagation switch.
	for _, src := range []string{
		"%%PROPAGATE-ACCIDENTALS pitch\nL:1/4\nK:C\n^F F",
		"I:propagate-accidentals pitch\nL:1/4\nK:C\n^F F",
	} {
		voice, _, err := resolveSource(t, src, Options{})
		require.NoError(t, err)
		notes := generalNotes(voice.Stream)
		require.Len(t, notes, 2, "src=%q", src)
		assert.Equal(t, "^", notes[1].Derived.Carried, "src=%q", src)
	}
}

func TestResolve_TieChain(t *testing.T) {
	voice, _, err := resolveSource(t, "L:1/4\nK:C\nC-C-C D", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 4)
	assert.Equal(t, token.TieStart, notes[0].Derived.Tie)
	assert.Equal(t, token.TieContinue, notes[1].Derived.Tie)
	assert.Equal(t, token.TieStop, notes[2].Derived.Tie)
	assert.Equal(t, token.TieNone, notes[3].Derived.Tie)
}

func TestResolve_TupletDefaults(t *testing.T) {
	tests := []struct {
		name   string
		meter  string
		digit  string
		normal int
	}{
		{name: "duplet", meter: "M:4/4", digit: "(2", normal: 3},
		{name: "triplet", meter: "M:4/4", digit: "(3", normal: 2},
		{name: "quadruplet", meter: "M:4/4", digit: "(4", normal: 3},
		{name: "quintuplet simple", meter: "M:4/4", digit: "(5", normal: 2},
		{name: "quintuplet compound", meter: "M:6/8", digit: "(5", normal: 3},
		{name: "sextuplet", meter: "M:4/4", digit: "(6", normal: 2},
		{name: "septuplet compound", meter: "M:9/8", digit: "(7", normal: 3},
		{name: "octuplet", meter: "M:4/4", digit: "(8", normal: 3},
		{name: "nonuplet simple", meter: "M:4/4", digit: "(9", normal: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.meter + "\nL:1/4\nK:C\n" + tt.digit + "CCCCCCCCC"
			voice, diags, err := resolveSource(t, src, Options{})
			require.NoError(t, err)
			assert.Empty(t, diags)

			notes := generalNotes(voice.Stream)
			require.NotEmpty(t, notes)
			require.NotNil(t, notes[0].Derived.Tuplet)
			assert.Equal(t, tt.normal, notes[0].Derived.Tuplet.Normal)
		})
	}
}

func TestResolve_TupletDurationAndSpan(t *testing.T) {
	voice, _, err := resolveSource(t, "M:4/4\nL:1/4\nK:C\n(3CCC C", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 4)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 2.0/3.0, notes[i].Derived.Duration, 1e-9, "note %d", i)
		assert.NotNil(t, notes[i].Derived.Tuplet)
	}
	// The fourth note is outside the triplet.
	assert.InDelta(t, 1.0, notes[3].Derived.Duration, 1e-9)
	assert.Nil(t, notes[3].Derived.Tuplet)
}

func TestResolve_TupletExplicitRatio(t *testing.T) {
	// (3:4:2 stretches two notes by 4/3.
	voice, _, err := resolveSource(t, "M:4/4\nL:1/4\nK:C\n(3:4:2CC C", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 3)
	assert.InDelta(t, 4.0/3.0, notes[0].Derived.Duration, 1e-9)
	assert.InDelta(t, 4.0/3.0, notes[1].Derived.Duration, 1e-9)
	assert.InDelta(t, 1.0, notes[2].Derived.Duration, 1e-9)
}

func TestResolve_TupletDigitOutOfRange(t *testing.T) {
	voice, diags, err := resolveSource(t, "M:4/4\nL:1/4\nK:C\n(10CC", Options{})
	require.NoError(t, err)

	found := false
	for _, d := range diags {
		if d.Code == diag.InvalidTuplet {
			found = true
			assert.Equal(t, diag.SeverityError, d.Severity)
		}
	}
	assert.True(t, found, "expected an InvalidTuplet diagnostic")

	// The notes resolve untupleted.
	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 2)
	assert.Nil(t, notes[0].Derived.Tuplet)
	assert.InDelta(t, 1.0, notes[0].Derived.Duration, 1e-9)
}

func TestResolve_BrokenRhythm(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		left  float64
		right float64
	}{
		{name: "single dot", body: "C>D", left: 1.5, right: 0.5},
		{name: "double dot", body: "C>>D", left: 1.75, right: 0.25},
		{name: "triple dot", body: "C>>>D", left: 1.875, right: 0.125},
		{name: "mirrored", body: "C<D", left: 0.5, right: 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voice, _, err := resolveSource(t, "L:1/4\nK:C\n"+tt.body, Options{})
			require.NoError(t, err)

			notes := generalNotes(voice.Stream)
			require.Len(t, notes, 2)
			assert.InDelta(t, tt.left, notes[0].Derived.Duration, 1e-9)
			assert.InDelta(t, tt.right, notes[1].Derived.Duration, 1e-9)
		})
	}
}

func TestResolve_LeadingBrokenMarkDiscarded(t *testing.T) {
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n>C D", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 2)
	assert.InDelta(t, 1.0, notes[0].Derived.Duration, 1e-9)
	assert.InDelta(t, 1.0, notes[1].Derived.Duration, 1e-9)
}

func TestResolve_GraceNotesExcluded(t *testing.T) {
	// The grace region sits between the tie mark and its stop note; grace
	// notes must not consume the pending tie or the broken rhythm pair.
	voice, _, err := resolveSource(t, "L:1/4\nK:C\nC-{GA}C", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 4)

	assert.Equal(t, token.TieStart, notes[0].Derived.Tie)
	assert.True(t, notes[1].Derived.Grace)
	assert.True(t, notes[2].Derived.Grace)
	assert.Equal(t, token.TieNone, notes[1].Derived.Tie)
	assert.Equal(t, token.TieStop, notes[3].Derived.Tie)
}

func TestResolve_GraceNotesSkipTuplet(t *testing.T) {
	voice, _, err := resolveSource(t, "M:4/4\nL:1/4\nK:C\n(3C{d}CC", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 4)
	tupleted := 0
	for _, n := range notes {
		if n.Derived.Grace {
			assert.Nil(t, n.Derived.Tuplet)
			continue
		}
		require.NotNil(t, n.Derived.Tuplet)
		tupleted++
	}
	assert.Equal(t, 3, tupleted)
}

func TestResolve_SpannerSnapshot(t *testing.T) {
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n(CD)E", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 3)
	assert.Len(t, notes[0].Derived.Spanners, 1)
	assert.Len(t, notes[1].Derived.Spanners, 1)
	assert.Empty(t, notes[2].Derived.Spanners)
}

func TestResolve_ArticulationsAttach(t *testing.T) {
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n.C D", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 2)
	require.Len(t, notes[0].Derived.Articulations, 1)
	assert.Equal(t, token.KindStaccato, notes[0].Derived.Articulations[0].Kind)
	assert.Empty(t, notes[1].Derived.Articulations)
}

func TestResolve_DefaultRedefinableSymbol(t *testing.T) {
	// "~" splices to !roll! from the default table; a roll is an ornament and
	// lands with the expressions.
	voice, diags, err := resolveSource(t, "L:1/4\nK:C\n~C", Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 1)
	require.Len(t, notes[0].Derived.Expressions, 1)
	assert.Equal(t, token.KindRoll, notes[0].Derived.Expressions[0].Kind)
	assert.Equal(t, "!roll!", notes[0].Derived.Expressions[0].Src)
}

func TestResolve_UserDefinedSymbolOverride(t *testing.T) {
	voice, _, err := resolveSource(t, "U:T = !upbow!\nL:1/4\nK:C\nTC", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 1)
	require.Len(t, notes[0].Derived.Articulations, 1)
	assert.Equal(t, token.KindUpbow, notes[0].Derived.Articulations[0].Kind)
}

func TestResolve_UserDefinedSymbolCleared(t *testing.T) {
	// After U:~=!nil!, "~" falls back to the default table definition.
	voice, diags, err := resolveSource(t, "U:~ = !nil!\nL:1/4\nK:C\n~C", Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 1)
	require.Len(t, notes[0].Derived.Expressions, 1)
	assert.Equal(t, "!roll!", notes[0].Derived.Expressions[0].Src)
}

func TestResolve_ChordInterior(t *testing.T) {
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n[CEG]2", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 1)
	chord := notes[0]
	assert.InDelta(t, 2.0, chord.Derived.Duration, 1e-9)

	require.Len(t, chord.Inner, 3)
	for _, inner := range chord.Inner {
		assert.InDelta(t, 1.0, inner.Derived.Duration, 1e-9)
	}
}

func TestResolve_ChordSeesCarriedAccidentals(t *testing.T) {
	opts := Options{Propagation: field.PropagatePitch}
	voice, _, err := resolveSource(t, "L:1/4\nK:C\n^F [FA] F", opts)
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 3)

	chord := notes[1]
	require.Len(t, chord.Inner, 2)
	assert.Equal(t, "^", chord.Inner[0].Derived.Carried)

	// Interior mutations stay inside the chord: the outer F still carries
	// the original sharp, nothing more.
	assert.Equal(t, "^", notes[2].Derived.Carried)
}

func TestResolve_OverlayIsolated(t *testing.T) {
	opts := Options{Propagation: field.PropagatePitch}
	tokens, _, err := lexer.Lex("L:1/4\nK:C\n^F F&FF|")
	require.NoError(t, err)

	header, body := structure.SplitHeaderAndBody(tokens)
	voices := structure.SplitByVoice(header, body)
	voice := voices[structure.DefaultVoiceID]
	require.NotNil(t, voice)

	_, resolveErr := ResolveVoice(voice, opts)
	require.NoError(t, resolveErr)

	var overlay *token.Token
	for _, tok := range voice.Stream {
		if tok.Kind == token.KindVoiceOverlay {
			overlay = tok
		}
	}
	require.NotNil(t, overlay)

	// Overlay notes get a fresh carried map: no sharp reaches them.
	inner := generalNotes(structure.Stream(overlay.Inner))
	require.Len(t, inner, 2)
	assert.Empty(t, inner[0].Derived.Carried)
	assert.Empty(t, inner[1].Derived.Carried)
	assert.InDelta(t, 1.0, inner[0].Derived.Duration, 1e-9)
}

func TestResolve_LyricAlignment(t *testing.T) {
	src := "L:1/4\nK:C\nCDEF|GA\nw:one two * _ | three four"
	voice, _, err := resolveSource(t, src, Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 6)

	require.Len(t, notes[0].Derived.Lyrics, 1)
	assert.Equal(t, "one", notes[0].Derived.Lyrics[0].Text)
	assert.Equal(t, "two", notes[1].Derived.Lyrics[0].Text)
	assert.Empty(t, notes[2].Derived.Lyrics) // skipped by *
	assert.Empty(t, notes[3].Derived.Lyrics) // held by _
	assert.Equal(t, "three", notes[4].Derived.Lyrics[0].Text)
	assert.Equal(t, "four", notes[5].Derived.Lyrics[0].Text)
}

func TestResolve_LyricVerses(t *testing.T) {
	src := "L:1/4\nK:C\nCD\nw:one two\nw:eins zwei"
	voice, _, err := resolveSource(t, src, Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 2)
	require.Len(t, notes[0].Derived.Lyrics, 2)
	assert.Equal(t, 0, notes[0].Derived.Lyrics[0].Verse)
	assert.Equal(t, "one", notes[0].Derived.Lyrics[0].Text)
	assert.Equal(t, 1, notes[0].Derived.Lyrics[1].Verse)
	assert.Equal(t, "eins", notes[0].Derived.Lyrics[1].Text)
}

func TestResolve_HyphenatedLyric(t *testing.T) {
	src := "L:1/4\nK:C\nCD\nw:lit-tle"
	voice, _, err := resolveSource(t, src, Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 2)
	require.Len(t, notes[0].Derived.Lyrics, 1)
	assert.True(t, notes[0].Derived.Lyrics[0].Hyphenated)
	assert.Equal(t, "tle", notes[1].Derived.Lyrics[0].Text)
	assert.False(t, notes[1].Derived.Lyrics[0].Hyphenated)
}

func TestResolve_KeyStamped(t *testing.T) {
	voice, _, err := resolveSource(t, "L:1/4\nK:G\nF", Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].Derived.Key)
	assert.Equal(t, "G", notes[0].Derived.Key.Tonic)
	assert.Equal(t, "^", notes[0].Derived.Key.Alter("F"))
}

func TestResolve_VersionInstructionAdjustsPropagation(t *testing.T) {
	// An abc-version instruction in-stream flips the unpinned default.
	src := "%abc-2.1\nL:1/4\nK:C\n^F F"
	voice, _, err := resolveSource(t, src, Options{})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	assert.Equal(t, "^", notes[1].Derived.Carried)
}

func TestResolve_ExplicitOptionPinsPropagation(t *testing.T) {
	// A caller-chosen mode survives a later version instruction.
	src := "%abc-2.1\nL:1/4\nK:C\n^F F"
	voice, _, err := resolveSource(t, src, Options{Propagation: field.PropagateNot})
	require.NoError(t, err)

	notes := generalNotes(voice.Stream)
	assert.Empty(t, notes[1].Derived.Carried)
}
