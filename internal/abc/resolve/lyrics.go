package resolve

import (
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// resolveLyric aligns one w: line against the general notes collected since
// the previous first-verse lyric line. Consecutive w: lines are successive
// verses over the same note run. Grace notes never enter the collection, so
// they are skipped implicitly; nil entries in the collection are bar
// sentinels used by the "|" control syllable.
func (r *Resolver) resolveLyric(t *token.Token) {
	ctx := r.ctx
	if ctx.lastWasLyric {
		ctx.lyricVerse++
	} else {
		ctx.lyricVerse = 0
		ctx.lyricAlign = ctx.lyricNotes
		ctx.lyricNotes = nil
	}

	notes := ctx.lyricAlign
	idx := 0

	// nextNote advances to the next non-sentinel note, or nil when the run
	// is exhausted (extra syllables simply fall off the end).
	nextNote := func() *token.Token {
		for idx < len(notes) {
			n := notes[idx]
			idx++
			if n != nil {
				return n
			}
		}
		return nil
	}
	// nextBar advances past the next bar sentinel.
	nextBar := func() {
		for idx < len(notes) {
			n := notes[idx]
			idx++
			if n == nil {
				return
			}
		}
	}

	for _, syl := range field.ParseLyrics(t.Field.Value) {
		switch syl.Kind {
		case field.SyllableBar:
			nextBar()
		case field.SyllableSkip, field.SyllableContinue, field.SyllableHeld:
			nextNote()
		case field.SyllableText:
			if note := nextNote(); note != nil {
				note.Derived.Lyrics = append(note.Derived.Lyrics, token.Lyric{
					Verse:      ctx.lyricVerse,
					Text:       syl.Text,
					Hyphenated: syl.Hyphenated,
				})
			}
		}
	}
}
