package lexer

import (
	"testing"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []*token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func sources(tokens []*token.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Src
	}
	return out
}

func TestLex_Deterministic(t *testing.T) {
	src := "X:1\nK:G\nGABc|"
	first, diags1, err := Lex(src)
	require.NoError(t, err)
	second, diags2, err := Lex(src)
	require.NoError(t, err)

	assert.Equal(t, kinds(first), kinds(second))
	assert.Equal(t, sources(first), sources(second))
	assert.Equal(t, diags1, diags2)
}

func TestLex_SimpleTune(t *testing.T) {
	tokens, diags, err := Lex("X:1\nK:C\nCDE|")
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, []token.Kind{
		token.KindFieldReference,
		token.KindFieldKey,
		token.KindNote, token.KindNote, token.KindNote,
		token.KindBar,
	}, kinds(tokens))
	assert.Zero(t, tokens[0].Offset) // X: starts the source
}

func TestLex_CompoundBarExpansion(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		sources []string
	}{
		{name: "double repeat", src: "K:C\nC::C", sources: []string{"K:C", "C", ":|", "|:", "C"}},
		{name: "first ending", src: "K:C\nC|1C", sources: []string{"K:C", "C", "|", "[1", "C"}},
		{name: "second ending", src: "K:C\nC|2C", sources: []string{"K:C", "C", "|", "[2", "C"}},
		{name: "repeat into first ending", src: "K:C\nC:|1C", sources: []string{"K:C", "C", ":|", "[1", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, _, err := Lex(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.sources, sources(tokens))
		})
	}
}

func TestLex_ExpandedBarKinds(t *testing.T) {
	tokens, _, err := Lex("K:C\nC::C")
	require.NoError(t, err)
	require.Len(t, tokens, 5)
	assert.Equal(t, token.KindBarRepeatEnd, tokens[2].Kind)
	assert.Equal(t, token.KindBarRepeatStart, tokens[3].Kind)
	// Both halves carry offsets inside the original "::".
	assert.Equal(t, tokens[2].Offset+len(tokens[2].Src), tokens[3].Offset)
}

func TestLex_VersionMarker(t *testing.T) {
	tokens, diags, err := Lex("%abc-2.1\nX:1\nK:C\nC")
	require.NoError(t, err)
	assert.Empty(t, diags)

	require.NotEmpty(t, tokens)
	first := tokens[0]
	assert.Equal(t, token.KindFieldInstruction, first.Kind)
	assert.Equal(t, "I", first.Field.Tag)
	assert.Equal(t, "abc-version 2.1.0", first.Field.Value)
}

func TestLex_CallerVersionDefault(t *testing.T) {
	v := field.Version{Major: 2, Minor: 1}

	// Without a marker the caller default is prepended...
	tokens, _, err := Lex("K:C\nC", WithVersion(v))
	require.NoError(t, err)
	require.NotEmpty(t, tokens)
	assert.Equal(t, token.KindFieldInstruction, tokens[0].Kind)
	assert.Equal(t, "abc-version 2.1.0", tokens[0].Field.Value)

	// ...but a source marker wins and no second instruction appears.
	tokens, _, err = Lex("%abc-1.6\nK:C\nC", WithVersion(v))
	require.NoError(t, err)
	versions := 0
	for _, tok := range tokens {
		if tok.Kind == token.KindFieldInstruction {
			versions++
		}
	}
	assert.Equal(t, 1, versions)
	assert.Equal(t, "abc-version 1.6.0", tokens[0].Field.Value)
}

func TestLex_Directives(t *testing.T) {
	tokens, _, err := Lex("%%propagate-accidentals octave\nK:C\nC")
	require.NoError(t, err)
	require.NotEmpty(t, tokens)
	assert.Equal(t, token.KindFieldInstruction, tokens[0].Kind)
	assert.Equal(t, "propagate-accidentals octave", tokens[0].Field.Value)
}

func TestLex_CommentsDropped(t *testing.T) {
	tokens, diags, err := Lex("K:C\nCDE % a remark\nFGA")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"K:C", "C", "D", "E", "F", "G", "A"}, sources(tokens))
}

func TestLex_LineContinuation(t *testing.T) {
	// The continued line must not be treated as a line start, so "w:..." on
	// it would be a field; here we check a note line joins seamlessly.
	tokens, _, err := Lex("K:C\nCDE\\\nFGA")
	require.NoError(t, err)
	assert.Equal(t, []string{"K:C", "C", "D", "E", "F", "G", "A"}, sources(tokens))
}

func TestLex_ChordInterior(t *testing.T) {
	tokens, _, err := Lex("K:C\n[CEG]2")
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	chord := tokens[1]
	assert.Equal(t, token.KindChord, chord.Kind)
	assert.Equal(t, "2", chord.Note.DurationSrc)
	require.Len(t, chord.Inner, 3)
	for i, letter := range []string{"C", "E", "G"} {
		assert.Equal(t, token.KindNote, chord.Inner[i].Kind)
		assert.Equal(t, letter, chord.Inner[i].Note.Letter)
	}
	// Interior offsets point into the outer source.
	assert.Greater(t, chord.Inner[0].Offset, chord.Offset)
}

func TestLex_UnmatchableTolerant(t *testing.T) {
	tokens, diags, err := Lex("K:C\nC@D")
	require.NoError(t, err)
	assert.Equal(t, []string{"K:C", "C", "D"}, sources(tokens))

	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Code == diag.MalformedSource {
			found = true
		}
	}
	assert.True(t, found, "expected a MalformedSource diagnostic")
}

func TestLex_UnmatchableStrict(t *testing.T) {
	_, _, err := Lex("K:C\nC@D", Strict())
	require.Error(t, err)

	var lexErr *diag.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, diag.MalformedSource, lexErr.Code)
}

func TestLex_MalformedTokenDropped(t *testing.T) {
	// "!bogus!" matches the decoration pattern but has no known name: the
	// token is dropped with a warning and lexing continues.
	tokens, diags, err := Lex("K:C\n!bogus!C")
	require.NoError(t, err)
	assert.Equal(t, []string{"K:C", "C"}, sources(tokens))

	require.NotEmpty(t, diags)
	assert.Equal(t, diag.SeverityWarning, diags[0].Severity)
	assert.Equal(t, diag.InvalidField, diags[0].Code)
}
