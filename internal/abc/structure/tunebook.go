package structure

import (
	"sort"
	"strings"

	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// Tune is one tune: its header stream (metadata up to and including the key
// field) and its voices keyed by id.
type Tune struct {
	Ref    int
	Header Stream
	Voices map[string]*Voice
}

// Title returns the first T: field value of the header, empty when absent.
func (t *Tune) Title() string {
	for _, tok := range t.Header {
		if tok.Kind == token.KindFieldTitle {
			return tok.Field.Value
		}
	}
	return ""
}

// VoiceIDs returns the voice ids in sorted order.
func (t *Tune) VoiceIDs() []string {
	ids := make([]string, 0, len(t.Voices))
	for id := range t.Voices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewTune splits one tune's tokens into header and voices.
func NewTune(ref int, tokens Stream) *Tune {
	header, body := SplitHeaderAndBody(tokens)
	return &Tune{
		Ref:    ref,
		Header: header,
		Voices: SplitByVoice(header, body),
	}
}

// TuneBook is a multi-tune source: shared header tokens plus tunes keyed by
// reference number. Reference numbers are unique by construction: collisions
// are renumbered by scanning upward from the current tune count.
type TuneBook struct {
	Header Stream
	Tunes  map[int]*Tune
	// Order preserves source order of the (possibly renumbered) refs.
	Order []int
}

// NewTuneBook assembles a tune book from a raw token stream. The shared
// prefix before the first X: field becomes the book header and is also copied
// onto every tune.
func NewTuneBook(tokens Stream) *TuneBook {
	prefix, sections := referenceSections(tokens)
	book := &TuneBook{Header: prefix, Tunes: make(map[int]*Tune)}

	if len(sections) == 0 {
		if len(prefix) > 0 && prefix.HasGeneralNote() {
			book.Tunes[NoReference] = NewTune(NoReference, prefix)
			book.Order = append(book.Order, NoReference)
		}
		return book
	}

	for _, sec := range sections {
		ref := sec.ref
		if _, taken := book.Tunes[ref]; taken || !sec.hasRef {
			ref = book.nextFreeRef()
		}
		book.Tunes[ref] = NewTune(ref, prefix.Concat(sec.tokens))
		book.Order = append(book.Order, ref)
	}
	return book
}

// nextFreeRef scans upward from the current tune count for an unused integer.
func (b *TuneBook) nextFreeRef() int {
	candidate := len(b.Tunes) + 1
	for {
		if _, taken := b.Tunes[candidate]; !taken {
			return candidate
		}
		candidate++
	}
}

// Titles maps each reference number to its tune title, for listings.
func (b *TuneBook) Titles() map[int]string {
	out := make(map[int]string, len(b.Tunes))
	for ref, tune := range b.Tunes {
		out[ref] = strings.TrimSpace(tune.Title())
	}
	return out
}
