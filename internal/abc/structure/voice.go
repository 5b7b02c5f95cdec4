package structure

import (
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// DefaultVoiceID is the voice everything belongs to until a concrete V:
// field appears.
const DefaultVoiceID = "1"

// Voice is one melodic line: its token stream (prefixed with the playback-
// relevant tune header fields) and the derived measure groups.
type Voice struct {
	ID     string
	Stream Stream

	measures []*Measure
}

// Measures lazily derives and caches the per-measure groups.
func (v *Voice) Measures() []*Measure {
	if v.measures == nil {
		v.measures = SplitByMeasure(v.Stream)
	}
	return v.measures
}

// SplitByVoice partitions body tokens into per-voice streams. A V:* field is
// broadcast, not a switch: it is appended to every currently-known voice and
// to a pending all-voices buffer so later-declared voices receive it too. An
// "&" overlay marker never switches voices; it captures everything up to the
// next bar or voice field into a single overlay token on the current voice.
// Each produced stream is prefixed with the playback subset of header; voices
// with no general note are dropped.
func SplitByVoice(header Stream, body Stream) map[string]*Voice {
	prefix := playbackHeader(header)

	streams := make(map[string]Stream)
	var order []string
	var allVoices Stream
	active := DefaultVoiceID

	ensure := func(id string) {
		if _, ok := streams[id]; !ok {
			streams[id] = allVoices.Concat()
			order = append(order, id)
		}
	}

	for i := 0; i < len(body); i++ {
		t := body[i]
		switch {
		case t.Kind == token.KindFieldVoice && !t.IsInlineField():
			id := voiceFieldID(t)
			if id == "*" {
				for _, known := range order {
					streams[known] = append(streams[known], t)
				}
				allVoices = append(allVoices, t)
				continue
			}
			if id == "" {
				continue
			}
			ensure(id)
			active = id
			streams[id] = append(streams[id], t)
		case t.Kind == token.KindVoiceOverlay:
			overlay := &token.Token{Kind: token.KindVoiceOverlay, Src: t.Src, Offset: t.Offset}
			j := i + 1
			for ; j < len(body); j++ {
				next := body[j]
				if next.Kind.IsBar() || (next.Kind == token.KindFieldVoice && !next.IsInlineField()) {
					break
				}
				overlay.Inner = append(overlay.Inner, next)
			}
			i = j - 1
			ensure(active)
			streams[active] = append(streams[active], overlay)
		default:
			ensure(active)
			streams[active] = append(streams[active], t)
		}
	}

	voices := make(map[string]*Voice)
	for _, id := range order {
		stream := streams[id]
		if !stream.HasGeneralNote() {
			continue
		}
		voices[id] = &Voice{ID: id, Stream: prefix.Concat(stream)}
	}
	return voices
}
