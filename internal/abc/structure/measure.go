package structure

import "github.com/Conceptual-Machines/abc-api/internal/abc/token"

// Measure is one bar's worth of tokens with its adjacent bar-line tokens.
// Left is nil for the first measure of a voice; Right is nil when the voice
// ends without a closing bar.
type Measure struct {
	Left   *token.Token
	Tokens Stream
	Right  *token.Token
}

// HasGeneralNote reports whether the measure carries at least one note, rest
// or chord.
func (m *Measure) HasGeneralNote() bool { return m.Tokens.HasGeneralNote() }

// SplitByMeasure walks a voice's tokens and starts a new measure group at
// every bar token and at every non-inline metadata token (a bare field line
// terminates the measure exactly like a bar does). Groups with no general
// note are not emitted standalone; their tokens are prepended to the next
// note-bearing measure, which also absorbs the leading header-only groups.
func SplitByMeasure(tokens Stream) []*Measure {
	var raw []*Measure
	cur := &Measure{}

	for _, t := range tokens {
		switch {
		case t.Kind.IsBar():
			cur.Right = t
			raw = append(raw, cur)
			cur = &Measure{Left: t}
		case t.Kind.IsField() && !t.IsInlineField():
			raw = append(raw, cur)
			cur = &Measure{}
			cur.Tokens = append(cur.Tokens, t)
		default:
			cur.Tokens = append(cur.Tokens, t)
		}
	}
	raw = append(raw, cur)

	// Merge pass: fold note-less groups into the next note-bearing one.
	// Consecutive bar tokens collapse here: the empty group between them is
	// dropped and the later bar becomes the next measure's left bar.
	var out []*Measure
	var pending Stream
	for _, m := range raw {
		if !m.HasGeneralNote() {
			pending = append(pending, m.Tokens...)
			continue
		}
		if len(pending) > 0 {
			m.Tokens = pending.Concat(m.Tokens)
			pending = nil
		}
		out = append(out, m)
	}
	if len(pending) > 0 && len(out) > 0 {
		last := out[len(out)-1]
		last.Tokens = append(last.Tokens, pending...)
	}
	return out
}
