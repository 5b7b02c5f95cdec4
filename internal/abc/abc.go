// Package abc is the entry point to the ABC parsing pipeline: lexing,
// structural splitting and semantic resolution. The HTTP handlers and any
// external renderer consume this surface; the subpackages stay independently
// callable for callers that need only one stage.
package abc

import (
	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/lexer"
	"github.com/Conceptual-Machines/abc-api/internal/abc/resolve"
	"github.com/Conceptual-Machines/abc-api/internal/abc/structure"
)

// Option configures a Parse run.
type Option func(*options)

type options struct {
	version     field.Version
	strict      bool
	propagation field.PropagationMode
}

// WithVersion sets the format version assumed when the source has no %abc-
// marker.
func WithVersion(v field.Version) Option {
	return func(o *options) { o.version = v }
}

// Strict aborts on unmatchable source instead of skipping and diagnosing.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

// WithPropagation overrides the version-derived accidental propagation
// default.
func WithPropagation(mode field.PropagationMode) Option {
	return func(o *options) { o.propagation = mode }
}

// Parse runs the full pipeline over a tune book or single tune fragment. One
// malformed tune never aborts the batch: failed voices and empty tunes are
// removed and diagnosed, and the partial book is returned.
func Parse(source string, opts ...Option) (*structure.TuneBook, []diag.Diagnostic, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	lexOpts := []lexer.Option{lexer.WithVersion(o.version)}
	if o.strict {
		lexOpts = append(lexOpts, lexer.Strict())
	}

	collector := &diag.Collector{}
	tokens, lexDiags, err := lexer.Lex(source, lexOpts...)
	collector.Merge(lexDiags)
	if err != nil {
		return nil, collector.Records(), err
	}

	book := structure.NewTuneBook(tokens)
	resolveOpts := resolve.Options{Version: o.version, Propagation: o.propagation}

	for _, ref := range book.Order {
		tune := book.Tunes[ref]
		for _, id := range tune.VoiceIDs() {
			voice := tune.Voices[id]
			voiceDiags, voiceErr := resolve.ResolveVoice(voice, resolveOpts)
			collector.Merge(voiceDiags)
			if voiceErr != nil {
				collector.Add(diag.Errorf(diag.MissingContext, -1, "",
					"tune %d voice %s dropped: %v", ref, id, voiceErr))
				delete(tune.Voices, id)
			}
		}
		if len(tune.Voices) == 0 {
			collector.Add(diag.Errorf(diag.MissingContext, -1, "",
				"tune %d has no resolvable voices and was dropped", ref))
			delete(book.Tunes, ref)
		}
	}
	pruneOrder(book)
	return book, collector.Records(), nil
}

// ParseTune extracts one tune from a multi-tune source by reference number
// and parses just that tune, for lazy loading of large books.
func ParseTune(source string, ref int, opts ...Option) (*structure.Tune, []diag.Diagnostic, error) {
	text, err := structure.ExtractTuneText(source, ref)
	if err != nil {
		return nil, nil, err
	}
	book, diags, err := Parse(text, opts...)
	if err != nil {
		return nil, diags, err
	}
	tune, ok := book.Tunes[ref]
	if !ok {
		return nil, diags, diag.NewError(diag.MissingContext, -1,
			"tune %d did not survive resolution", ref)
	}
	return tune, diags, nil
}

func pruneOrder(book *structure.TuneBook) {
	kept := book.Order[:0]
	for _, ref := range book.Order {
		if _, ok := book.Tunes[ref]; ok {
			kept = append(kept, ref)
		}
	}
	book.Order = kept
}
