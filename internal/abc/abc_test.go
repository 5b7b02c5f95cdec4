package abc

import (
	"testing"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoTuneBook = `%abc-2.1
X:1
T:First Reel
M:4/4
L:1/8
K:G
GABc dedB|dedB dedB|

X:2
T:Second Jig
M:6/8
L:1/8
K:D
FED FED|
`

func TestParse_TwoTunes(t *testing.T) {
	book, diags, err := Parse(twoTuneBook)
	require.NoError(t, err)
	assert.Empty(t, diags)

	require.Len(t, book.Tunes, 2)
	assert.Equal(t, []int{1, 2}, book.Order)
	assert.Equal(t, "First Reel", book.Tunes[1].Title())
	assert.Equal(t, "Second Jig", book.Tunes[2].Title())
}

func TestParse_DurationsResolved(t *testing.T) {
	book, _, err := Parse(twoTuneBook)
	require.NoError(t, err)

	voice := book.Tunes[1].Voices["1"]
	require.NotNil(t, voice)

	for _, tok := range voice.Stream {
		if tok.Kind.IsGeneralNote() {
			assert.InDelta(t, 0.5, tok.Derived.Duration, 1e-9, "token %s", tok.Src)
		}
	}
}

func TestParse_BadTuneDoesNotAbortBatch(t *testing.T) {
	// The second tune has a note before any K:/L:/M: context and is dropped;
	// the first must survive.
	src := "X:1\nL:1/4\nK:C\nCDE|\n\nX:2\nC\nK:C\n"
	book, diags, err := Parse(src)
	require.NoError(t, err)

	assert.Contains(t, book.Tunes, 1)
	assert.NotContains(t, book.Tunes, 2)
	assert.Equal(t, []int{1}, book.Order)

	found := false
	for _, d := range diags {
		if d.Code == diag.MissingContext {
			found = true
		}
	}
	assert.True(t, found, "expected a MissingContext diagnostic for the dropped tune")
}

func TestParse_EmptySource(t *testing.T) {
	book, _, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, book.Tunes)
	assert.Empty(t, book.Order)
}

func TestParse_StrictAborts(t *testing.T) {
	_, _, err := Parse("X:1\nK:C\nC@", Strict())
	require.Error(t, err)
}

func TestParse_VersionOption(t *testing.T) {
	// Version 2.1 switches the accidental default to pitch propagation.
	src := "X:1\nL:1/4\nK:C\n^F F|\n"
	book, _, err := Parse(src, WithVersion(field.Version{Major: 2, Minor: 1}))
	require.NoError(t, err)

	voice := book.Tunes[1].Voices["1"]
	require.NotNil(t, voice)

	var notes []*token.Token
	for _, tok := range voice.Stream {
		if tok.Kind == token.KindNote {
			notes = append(notes, tok)
		}
	}
	require.Len(t, notes, 2)
	assert.Equal(t, "^", notes[1].Derived.Carried)
}

func TestParse_PropagationOption(t *testing.T) {
	src := "X:1\nL:1/4\nK:C\n^F F|\n"
	book, _, err := Parse(src, WithPropagation(field.PropagateOctave))
	require.NoError(t, err)

	voice := book.Tunes[1].Voices["1"]
	var notes []*token.Token
	for _, tok := range voice.Stream {
		if tok.Kind == token.KindNote {
			notes = append(notes, tok)
		}
	}
	require.Len(t, notes, 2)
	assert.Equal(t, "^", notes[1].Derived.Carried)
}

func TestParseTune(t *testing.T) {
	tune, diags, err := ParseTune(twoTuneBook, 2)
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert.Equal(t, 2, tune.Ref)
	assert.Equal(t, "Second Jig", tune.Title())
	require.Contains(t, tune.Voices, "1")
}

func TestParseTune_MissingReference(t *testing.T) {
	_, _, err := ParseTune(twoTuneBook, 42)
	require.Error(t, err)

	var extractErr *diag.Error
	require.ErrorAs(t, err, &extractErr)
}

func TestParseTune_KeepsBookHeader(t *testing.T) {
	// The %abc- line belongs to the book header and must reach the
	// extracted tune, so version-dependent behavior matches a full parse.
	src := "%abc-2.1\nX:1\nL:1/4\nK:C\n^F F|\n"
	tune, _, err := ParseTune(src, 1)
	require.NoError(t, err)

	voice := tune.Voices["1"]
	require.NotNil(t, voice)
	var notes []*token.Token
	for _, tok := range voice.Stream {
		if tok.Kind == token.KindNote {
			notes = append(notes, tok)
		}
	}
	require.Len(t, notes, 2)
	assert.Equal(t, "^", notes[1].Derived.Carried)
}
