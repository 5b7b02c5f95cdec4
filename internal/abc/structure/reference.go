package structure

import (
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// NoReference keys the single tune of a source that carries no X: field at
// all.
const NoReference = 0

// refSection is one tune's tokens in source order, before any collision
// renumbering.
type refSection struct {
	ref    int
	hasRef bool
	tokens Stream
}

// referenceSections walks the stream and groups it by X: field. Tokens before
// the first X: form the shared prefix copied verbatim onto every section.
func referenceSections(tokens Stream) (prefix Stream, sections []refSection) {
	var cur *refSection
	for _, t := range tokens {
		if t.Kind == token.KindFieldReference && !t.IsInlineField() {
			ref, err := strconv.Atoi(strings.TrimSpace(t.Field.Value))
			if err != nil {
				// An unparseable X: still starts a tune; it just has no
				// usable number.
				ref = NoReference
			}
			if cur != nil {
				sections = append(sections, *cur)
			}
			cur = &refSection{ref: ref, hasRef: err == nil, tokens: Stream{t}}
			continue
		}
		if cur == nil {
			prefix = append(prefix, t)
			continue
		}
		cur.tokens = append(cur.tokens, t)
	}
	if cur != nil {
		sections = append(sections, *cur)
	}
	return prefix, sections
}

// SplitByReferenceNumber partitions a multi-tune stream by X: field value.
// Tokens preceding the first X: are copied, verbatim, onto the start of every
// produced stream. With no X: at all the whole stream is one tune keyed by
// NoReference. On duplicate reference numbers the later tune wins; use
// NewTuneBook when collisions must be renumbered instead.
func SplitByReferenceNumber(tokens Stream) map[int]Stream {
	prefix, sections := referenceSections(tokens)
	if len(sections) == 0 {
		if len(prefix) == 0 {
			return map[int]Stream{}
		}
		return map[int]Stream{NoReference: prefix}
	}
	out := make(map[int]Stream, len(sections))
	for _, sec := range sections {
		out[sec.ref] = prefix.Concat(sec.tokens)
	}
	return out
}

// ExtractTuneText pulls one tune's raw text out of a multi-tune source by its
// reference number without lexing the rest: a line scan for X: fields. The
// text before the first X: line (the tune-book header) is kept on the front
// of the extracted tune. A number absent from the source is a hard failure.
func ExtractTuneText(source string, ref int) (string, error) {
	lines := strings.SplitAfter(source, "\n")
	var prefix strings.Builder
	var tune strings.Builder
	inPrefix := true
	capturing := false
	found := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "X:") {
			inPrefix = false
			if capturing {
				break
			}
			n, err := strconv.Atoi(strings.TrimSpace(trimmed[2:]))
			if err == nil && n == ref {
				capturing = true
				found = true
				tune.WriteString(line)
				continue
			}
			continue
		}
		if inPrefix {
			prefix.WriteString(line)
		} else if capturing {
			tune.WriteString(line)
		}
	}
	if !found {
		return "", diag.NewError(diag.InvalidField, -1,
			"reference number %d not present in source", ref)
	}
	return prefix.String() + tune.String(), nil
}

// ListReferenceNumbers scans raw source for every X: field value in order,
// without lexing. Unparseable X: lines are skipped.
func ListReferenceNumbers(source string) []int {
	var refs []int
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "X:") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(trimmed[2:])); err == nil {
			refs = append(refs, n)
		}
	}
	return refs
}
