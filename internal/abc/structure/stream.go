// Package structure partitions a raw token sequence into tune-book header,
// per-tune headers, per-voice streams and per-measure groups, and defines the
// Voice/Tune/TuneBook containers the resolver and renderers consume.
package structure

import (
	"strings"

	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// Stream is an ordered token sequence, the unit the splitter and resolver
// operate on.
type Stream []*token.Token

// Concat returns a new stream holding s followed by others, used when merging
// tune-book-header tokens into each tune.
func (s Stream) Concat(others ...Stream) Stream {
	out := make(Stream, 0, len(s))
	out = append(out, s...)
	for _, other := range others {
		out = append(out, other...)
	}
	return out
}

// HasGeneralNote reports whether any token in the stream is a note, rest or
// chord.
func (s Stream) HasGeneralNote() bool {
	for _, t := range s {
		if t.Kind.IsGeneralNote() {
			return true
		}
	}
	return false
}

// Sources joins the exact source substrings, for diagnostics and tests.
func (s Stream) Sources() []string {
	out := make([]string, len(s))
	for i, t := range s {
		out[i] = t.Src
	}
	return out
}

// SplitHeaderAndBody scans forward: every metadata token before the first
// key-field token, plus that key field itself, is header; the scan stops at
// the first non-metadata token or at the key field, whichever comes first.
func SplitHeaderAndBody(tokens Stream) (header Stream, body Stream) {
	for i, t := range tokens {
		if !t.Kind.IsField() || t.IsInlineField() {
			return tokens[:i], tokens[i:]
		}
		if t.Kind == token.KindFieldKey {
			return tokens[:i+1], tokens[i+1:]
		}
	}
	return tokens, nil
}

// playbackHeaderTags are the header field tags copied onto every voice stream
// because the resolver needs them to seed its context.
var playbackHeaderTags = map[string]bool{
	"K": true, "M": true, "L": true, "V": true, "I": true, "Q": true, "U": true,
}

// playbackHeader filters a tune header down to the fields relevant to
// resolution.
func playbackHeader(header Stream) Stream {
	var out Stream
	for _, t := range header {
		if t.Kind.IsField() && t.Field != nil && playbackHeaderTags[t.Field.Tag] {
			out = append(out, t)
		}
	}
	return out
}

// voiceFieldID pulls the voice id (the first word) out of a V: field token.
func voiceFieldID(t *token.Token) string {
	if t.Kind != token.KindFieldVoice || t.Field == nil {
		return ""
	}
	fields := strings.Fields(t.Field.Value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
