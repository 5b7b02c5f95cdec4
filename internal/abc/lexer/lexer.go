// Package lexer turns raw ABC source text into a linear token sequence by
// applying the token package's priority-ordered pattern registry in a single
// forward scan. Lexing the same text twice yields equal sequences.
package lexer

import (
	"strings"
	"sync"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// Option configures a lex run.
type Option func(*options)

type options struct {
	version field.Version
	strict  bool
}

// WithVersion supplies the format version to assume when the source has no
// %abc- marker.
func WithVersion(v field.Version) Option {
	return func(o *options) { o.version = v }
}

// Strict makes an unmatchable position abort the lex with a MalformedSource
// error instead of skipping one character. The default is tolerant: skip and
// diagnose.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

var (
	registryOnce  sync.Once
	registry      *token.Registry
	registryDiags []diag.Diagnostic
)

func sharedRegistry() (*token.Registry, []diag.Diagnostic) {
	registryOnce.Do(func() {
		registry, registryDiags = token.Build()
	})
	return registry, registryDiags
}

// Lex scans source into tokens. The returned diagnostics carry every locally
// recovered problem (dropped tokens, skipped characters); err is non-nil only
// in strict mode or when the registry itself failed to build.
//
// A leading "%abc-major.minor[.patch]" comment line is rewritten into an
// instruction field token (I: abc-version ...) so the version travels in the
// stream like any other directive; %%directives become instruction tokens the
// same way. Comments and line continuations are dropped before yielding.
func Lex(source string, opts ...Option) ([]*token.Token, []diag.Diagnostic, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg, regDiags := sharedRegistry()
	collector := &diag.Collector{}
	collector.Merge(regDiags)

	lx := &run{src: source, registry: reg, opts: o, diags: collector}
	tokens, err := lx.scan()
	if err != nil {
		return nil, collector.Records(), err
	}
	if !o.version.IsZero() && !lx.sawVersion {
		// Caller-supplied default, prepended so downstream consumers see
		// exactly one version instruction at most.
		versionTok := token.NewField("%abc-"+o.version.String(), 0,
			"I", field.InstrAbcVersion+" "+o.version.String(), false)
		tokens = append([]*token.Token{versionTok}, tokens...)
	}
	return tokens, collector.Records(), nil
}

type run struct {
	src        string
	registry   *token.Registry
	opts       options
	diags      *diag.Collector
	sawVersion bool
}

func (lx *run) scan() ([]*token.Token, error) {
	var tokens []*token.Token
	atLineStart := true
	i := 0

	for i < len(lx.src) {
		c := lx.src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
			continue
		case c == '\n':
			atLineStart = true
			i++
			continue
		case c == '\\' && restOfLineBlank(lx.src, i+1):
			// Line continuation: swallow through the newline without
			// resetting the line-start flag, so the next line joins the
			// current musical line.
			i = skipToLineEnd(lx.src, i)
			if i < len(lx.src) {
				i++ // the newline itself
			}
			atLineStart = false
			continue
		case c == '%':
			next := i + 1
			if atLineStart && strings.HasPrefix(lx.src[i:], "%abc-") {
				i = lx.versionMarker(&tokens, i)
				atLineStart = true
				continue
			}
			if atLineStart && next < len(lx.src) && lx.src[next] == '%' {
				i = lx.directive(&tokens, i)
				atLineStart = true
				continue
			}
			// Ordinary comment: drop to end of line.
			i = skipToLineEnd(lx.src, i)
			continue
		}

		reg, match := lx.registry.Match(lx.src[i:], atLineStart)
		if reg == nil {
			if lx.opts.strict {
				return nil, diag.NewError(diag.MalformedSource, i,
					"no token pattern matches %q", snippet(lx.src[i:]))
			}
			lx.diags.Add(diag.Errorf(diag.MalformedSource, i, snippet(lx.src[i:]),
				"no token pattern matches, skipping one character"))
			i++
			atLineStart = false
			continue
		}

		tok, err := reg.Construct(match, i)
		if err != nil {
			lx.diags.Add(diag.Warningf(diag.InvalidField, i, match,
				"dropping malformed token: %v", err))
			i += len(match)
			atLineStart = false
			continue
		}
		lx.emit(&tokens, tok)
		i += len(match)
		atLineStart = false
	}
	return tokens, nil
}

// emit applies the bar filter and chord recursion before appending.
func (lx *run) emit(tokens *[]*token.Token, tok *token.Token) {
	if tok.Kind.IsBar() {
		*tokens = append(*tokens, expandBar(tok)...)
		return
	}
	if tok.Kind == token.KindChord {
		lx.lexChordInterior(tok)
	}
	if tok.Kind == token.KindFieldInstruction && !tok.Field.Inline {
		lx.noteVersionInstruction(tok)
	}
	*tokens = append(*tokens, tok)
}

// barExpansions lists the compound bar sources that always yield exactly two
// bar tokens, never one.
var barExpansions = map[string][2]*token.Token{
	"::":  {{Kind: token.KindBarRepeatEnd, Src: ":|"}, {Kind: token.KindBarRepeatStart, Src: "|:"}},
	"|1":  {{Kind: token.KindBar, Src: "|"}, {Kind: token.KindRepeatBracket1, Src: "[1"}},
	"|2":  {{Kind: token.KindBar, Src: "|"}, {Kind: token.KindRepeatBracket2, Src: "[2"}},
	":|1": {{Kind: token.KindBarRepeatEnd, Src: ":|"}, {Kind: token.KindRepeatBracket1, Src: "[1"}},
	":|2": {{Kind: token.KindBarRepeatEnd, Src: ":|"}, {Kind: token.KindRepeatBracket2, Src: "[2"}},
}

func expandBar(tok *token.Token) []*token.Token {
	pair, ok := barExpansions[tok.Src]
	if !ok {
		return []*token.Token{tok}
	}
	first := *pair[0]
	second := *pair[1]
	first.Offset = tok.Offset
	second.Offset = tok.Offset + len(first.Src)
	return []*token.Token{&first, &second}
}

// lexChordInterior recursively lexes the bracket interior of a chord token.
// Only note, articulation and expression tokens are retained; bars, fields
// and spanners inside a chord bracket are invalid and discarded.
func (lx *run) lexChordInterior(tok *token.Token) {
	interior := tok.Src[1:strings.LastIndex(tok.Src, "]")]
	inner, diags, err := Lex(interior, WithVersion(lx.opts.version))
	lx.diags.Merge(diags)
	if err != nil {
		return
	}
	for _, it := range inner {
		switch it.Kind.Category() {
		case token.CategoryGeneralNote:
			if it.Kind != token.KindChord {
				it.Offset += tok.Offset + 1
				tok.Inner = append(tok.Inner, it)
			}
		case token.CategoryArticulation, token.CategoryExpression:
			it.Offset += tok.Offset + 1
			tok.Inner = append(tok.Inner, it)
		}
	}
}

// versionMarker consumes a %abc- line and yields it as an instruction token.
func (lx *run) versionMarker(tokens *[]*token.Token, i int) int {
	end := skipToLineEnd(lx.src, i)
	line := strings.TrimSpace(lx.src[i:end])
	raw := strings.TrimPrefix(line, "%abc-")
	if v, err := field.ParseVersion(raw); err == nil {
		lx.sawVersion = true
		*tokens = append(*tokens, token.NewField(line, i,
			"I", field.InstrAbcVersion+" "+v.String(), false))
	} else {
		lx.diags.Add(diag.Warningf(diag.InvalidField, i, line,
			"unparseable version marker: %v", err))
	}
	if end < len(lx.src) {
		end++
	}
	return end
}

// directive consumes a %%key value line and yields it as an I: field token.
func (lx *run) directive(tokens *[]*token.Token, i int) int {
	end := skipToLineEnd(lx.src, i)
	line := strings.TrimSpace(lx.src[i:end])
	payload := strings.TrimSpace(strings.TrimPrefix(line, "%%"))
	if payload == "" {
		lx.diags.Add(diag.Warningf(diag.InvalidField, i, line, "empty directive"))
	} else {
		*tokens = append(*tokens, token.NewField(line, i, "I", payload, false))
	}
	if end < len(lx.src) {
		end++
	}
	return end
}

func (lx *run) noteVersionInstruction(tok *token.Token) {
	instr, err := field.ParseInstruction(tok.Field.Value)
	if err == nil && instr.Key == field.InstrAbcVersion {
		lx.sawVersion = true
	}
}

func restOfLineBlank(src string, from int) bool {
	for i := from; i < len(src); i++ {
		switch src[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}

func skipToLineEnd(src string, from int) int {
	for i := from; i < len(src); i++ {
		if src[i] == '\n' {
			return i
		}
	}
	return len(src)
}

func snippet(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
