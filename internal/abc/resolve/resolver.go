package resolve

import (
	"strings"

	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/lexer"
	"github.com/Conceptual-Machines/abc-api/internal/abc/structure"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
)

// Resolver is one single-pass walk over a voice's stream. Each instance owns
// its Context; nested instances for chords and overlays get derived copies.
type Resolver struct {
	ctx   *Context
	diags *diag.Collector
}

// New builds a resolver seeded from options.
func New(opts Options) *Resolver {
	return &Resolver{ctx: newContext(opts), diags: &diag.Collector{}}
}

// ResolveVoice resolves one voice in place: its tokens gain derived fields,
// and redefinable-symbol splices rewrite its stream. A MissingContext failure
// aborts the voice and is returned as the error; everything else is locally
// recovered into diagnostics.
func ResolveVoice(v *structure.Voice, opts Options) ([]diag.Diagnostic, error) {
	r := New(opts)
	stream, err := r.Run(v.Stream)
	v.Stream = stream
	return r.diags.Records(), err
}

// Run resolves a stream and returns it (splices may have rewritten it).
func (r *Resolver) Run(stream structure.Stream) (structure.Stream, error) {
	tokens := stream
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch t.Kind {
		case token.KindRedefinableSymbol:
			spliced, ok := r.lookupSymbol(t)
			if !ok {
				// Undefined both in the user table and the defaults: drop.
				tokens = append(tokens[:i], tokens[i+1:]...)
				i--
				continue
			}
			// Splice in place and continue from the first spliced token.
			rest := make(structure.Stream, len(tokens[i+1:]))
			copy(rest, tokens[i+1:])
			tokens = append(tokens[:i], append(spliced, rest...)...)
			i--
			continue
		default:
			if err := r.resolveToken(t); err != nil {
				return tokens, err
			}
		}
		r.ctx.lastWasLyric = t.Kind == token.KindFieldLyric
	}
	return tokens, nil
}

// resolveToken dispatches by exact kind first, then by category. The category
// fallback is a compatibility requirement: articulations and expressions
// share one generic collection rule each.
func (r *Resolver) resolveToken(t *token.Token) error {
	switch t.Kind {
	case token.KindFieldKey:
		r.resolveKey(t)
	case token.KindFieldMeter:
		r.resolveMeter(t)
	case token.KindFieldUnitNoteLength:
		r.resolveUnitLength(t)
	case token.KindFieldInstruction:
		r.resolveInstruction(t)
	case token.KindFieldUserDefined:
		r.resolveUserDefined(t)
	case token.KindFieldLyric:
		r.resolveLyric(t)
	case token.KindTuplet:
		r.resolveTuplet(t)
	case token.KindTie:
		r.resolveTie()
	case token.KindGraceStart:
		r.ctx.pendingGrace = true
	case token.KindGraceStop:
		r.ctx.pendingGrace = false
	case token.KindParenStop:
		r.resolveParenStop()
	case token.KindBrokenRhythm:
		r.resolveBroken(t)
	case token.KindVoiceOverlay:
		r.resolveOverlay(t)
	default:
		switch t.Kind.Category() {
		case token.CategoryGeneralNote:
			return r.resolveGeneralNote(t)
		case token.CategoryBar:
			r.resolveBar()
		case token.CategorySpanner:
			r.ctx.openSpanners = append(r.ctx.openSpanners, t)
		case token.CategoryArticulation:
			r.ctx.pendingArtic = append(r.ctx.pendingArtic, t)
		case token.CategoryExpression:
			r.ctx.pendingExpr = append(r.ctx.pendingExpr, t)
		case token.CategoryField:
			// Titles, composers and the rest carry no resolution state.
		}
	}
	return nil
}

func (r *Resolver) resolveKey(t *token.Token) {
	key, err := field.ParseKey(t.Field.Value)
	if err != nil {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"invalid key field: %v", err))
		return
	}
	r.ctx.Key = key
}

func (r *Resolver) resolveMeter(t *token.Token) {
	meter, err := field.ParseMeter(t.Field.Value)
	if err != nil {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"invalid meter field: %v", err))
		return
	}
	r.ctx.Meter = meter
	if r.ctx.UnitLength == nil {
		derived := meter.DefaultUnitNoteLength()
		r.ctx.UnitLength = &derived
	}
}

func (r *Resolver) resolveUnitLength(t *token.Token) {
	fraction, err := field.ParseUnitNoteLength(t.Field.Value)
	if err != nil {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"invalid unit note length: %v", err))
		return
	}
	r.ctx.UnitLength = &fraction
}

func (r *Resolver) resolveInstruction(t *token.Token) {
	instr, err := field.ParseInstruction(t.Field.Value)
	if err != nil {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"invalid instruction: %v", err))
		return
	}
	// Directive keys arrive in whatever case the source used
	// (%%propagate-accidentals and I:PROPAGATE-ACCIDENTALS are the same key).
	switch {
	case strings.EqualFold(instr.Key, field.InstrPropagateAccidentals):
		mode, err := field.ParsePropagationMode(instr.Value)
		if err != nil {
			r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src, "%v", err))
			return
		}
		r.ctx.Propagation = mode
		r.ctx.propagationPinned = true
	case strings.EqualFold(instr.Key, field.InstrAbcVersion):
		version, err := field.ParseVersion(instr.Value)
		if err != nil {
			r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src, "%v", err))
			return
		}
		r.ctx.Version = version
		if !r.ctx.propagationPinned {
			r.ctx.Propagation = propagationFor(version)
		}
	}
}

func (r *Resolver) resolveUserDefined(t *token.Token) {
	def, err := field.ParseUserDefined(t.Field.Value)
	if err != nil {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"invalid user definition: %v", err))
		return
	}
	if def.Definition == "" {
		delete(r.ctx.userDefs, def.Symbol)
		return
	}
	tokens, lexDiags, lexErr := lexer.Lex(def.Definition)
	r.diags.Merge(lexDiags)
	if lexErr != nil || len(tokens) == 0 {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"user definition for %q does not lex", def.Symbol))
		return
	}
	r.ctx.userDefs[def.Symbol] = tokens
}

// defaultSymbols is the built-in redefinable symbol table, consulted when the
// user table has no entry.
var defaultSymbols = map[string]string{
	"~": "!roll!",
	"H": "!fermata!",
	"L": "!accent!",
	"M": "!lowermordent!",
	"O": "!coda!",
	"P": "!uppermordent!",
	"S": "!segno!",
	"T": "!trill!",
	"u": "!upbow!",
	"v": "!downbow!",
}

// lookupSymbol resolves a redefinable symbol to the tokens it splices in.
// Copies are returned so repeated uses never alias derived state.
func (r *Resolver) lookupSymbol(t *token.Token) (structure.Stream, bool) {
	if defTokens, ok := r.ctx.userDefs[t.Src]; ok {
		return copyTokens(defTokens, t.Offset), true
	}
	if definition, ok := defaultSymbols[t.Src]; ok {
		tokens, _, err := lexer.Lex(definition)
		if err == nil && len(tokens) > 0 {
			return copyTokens(tokens, t.Offset), true
		}
	}
	r.diags.Add(diag.Warningf(diag.UndefinedSymbol, t.Offset, t.Src,
		"redefinable symbol %q has no user or default definition", t.Src))
	return nil, false
}

func copyTokens(tokens []*token.Token, offset int) structure.Stream {
	out := make(structure.Stream, len(tokens))
	for i, t := range tokens {
		clone := *t
		clone.Offset = offset
		clone.Derived = token.Derived{}
		out[i] = &clone
	}
	return out
}

// tupletNormals is the fixed actual-to-normal table; zero entries mean "2,
// or 3 in compound meter".
var tupletNormals = map[int]int{
	1: 1, 2: 3, 3: 2, 4: 3, 5: 0, 6: 2, 7: 0, 8: 3, 9: 0,
}

func (r *Resolver) resolveTuplet(t *token.Token) {
	data := t.Tuplet
	normal, ok := tupletNormals[data.Actual]
	if !ok {
		r.diags.Add(diag.Errorf(diag.InvalidTuplet, t.Offset, t.Src,
			"tuplet digit %d outside 1-9", data.Actual))
		return
	}
	if data.Normal == 0 {
		if normal == 0 {
			normal = 2
			if r.ctx.Meter.IsCompound() {
				normal = 3
			}
		}
		data.Normal = normal
	}
	if data.NoteCount == 0 {
		data.NoteCount = data.Actual
	}
	r.ctx.activeTuplet = data
}

func (r *Resolver) resolveTie() {
	last := r.ctx.lastNote
	if last == nil {
		return
	}
	if last.Derived.Tie == token.TieStop {
		last.Derived.Tie = token.TieContinue
	} else if last.Derived.Tie == token.TieNone {
		last.Derived.Tie = token.TieStart
	}
	r.ctx.pendingTie = true
}

func (r *Resolver) resolveParenStop() {
	if n := len(r.ctx.openSpanners); n > 0 {
		r.ctx.openSpanners = r.ctx.openSpanners[:n-1]
	}
}

func (r *Resolver) resolveBroken(t *token.Token) {
	// Only meaningful between two notes; a leading mark has no left target
	// and is discarded.
	if r.ctx.lastNote == nil {
		return
	}
	r.ctx.pendingBroken = t.Broken
}

func (r *Resolver) resolveBar() {
	r.ctx.resetMeasure()
	r.ctx.lyricNotes = append(r.ctx.lyricNotes, nil)
}

// resolveOverlay forks a parallel sub-resolver over the overlay's captured
// tokens. The child sees a copy of the key, duration and meter but a fresh
// carried-accidental map; its mutations never reach this context.
func (r *Resolver) resolveOverlay(t *token.Token) {
	r.ctx.overlayCount++
	child := &Resolver{ctx: r.ctx.childContext(false), diags: r.diags}
	inner, err := child.Run(structure.Stream(t.Inner))
	t.Inner = inner
	if err != nil {
		r.diags.Add(diag.Errorf(diag.MissingContext, t.Offset, t.Src,
			"overlay resolution failed: %v", err))
	}
}

func (r *Resolver) resolveGeneralNote(t *token.Token) error {
	ctx := r.ctx
	if ctx.UnitLength == nil {
		return diag.NewError(diag.MissingContext, t.Offset,
			"general note %q resolved before any default note length was established", t.Src)
	}

	factor, err := field.ParseDuration(t.Note.DurationSrc)
	if err != nil {
		r.diags.Add(diag.Warningf(diag.InvalidField, t.Offset, t.Src,
			"invalid duration suffix: %v", err))
		factor = 1
	}
	// Duration in quarter lengths: unit note length is a fraction of a
	// whole note, and a whole note is four quarters.
	duration := ctx.UnitLength.Value() * 4 * factor

	t.Derived.Key = ctx.Key
	t.Derived.Spanners = append([]*token.Token(nil), ctx.openSpanners...)
	t.Derived.Articulations = ctx.pendingArtic
	t.Derived.Expressions = ctx.pendingExpr
	ctx.pendingArtic = nil
	ctx.pendingExpr = nil

	if ctx.pendingGrace {
		// Grace notes are excluded from tie, tuplet and broken-rhythm
		// accounting and never become the attachment anchor.
		t.Derived.Grace = true
		t.Derived.Duration = duration
		return nil
	}

	if ctx.pendingTie {
		t.Derived.Tie = token.TieStop
		ctx.pendingTie = false
	}

	if ctx.pendingBroken != nil {
		duration *= ctx.pendingBroken.Right
		if ctx.lastNote != nil {
			ctx.lastNote.Derived.Duration *= ctx.pendingBroken.Left
		}
		ctx.pendingBroken = nil
	}

	if tuplet := ctx.activeTuplet; tuplet != nil {
		duration *= float64(tuplet.Normal) / float64(tuplet.Actual)
		t.Derived.Tuplet = tuplet
		tuplet.NoteCount--
		if tuplet.NoteCount <= 0 {
			ctx.activeTuplet = nil
		}
	}

	t.Derived.Duration = duration

	if t.Kind == token.KindNote {
		r.propagateAccidental(t)
	}
	if t.Kind == token.KindChord {
		r.resolveChordInterior(t)
	}

	ctx.lastNote = t
	ctx.lyricNotes = append(ctx.lyricNotes, t)
	return nil
}

// propagateAccidental records an explicit accidental in the carried map, or
// stamps a carried accidental onto a bare note, under the active mode.
func (r *Resolver) propagateAccidental(t *token.Token) {
	if r.ctx.Propagation == field.PropagateNot {
		return
	}
	key := r.ctx.carriedKey(t.Note)
	if t.Note.Accidental != "" {
		r.ctx.carried[key] = t.Note.Accidental
		return
	}
	if carried, ok := r.ctx.carried[key]; ok {
		t.Derived.Carried = carried
	}
}

// resolveChordInterior resolves the notes inside a chord bracket through a
// nested resolver that shares the current key, duration and carried
// accidentals by value. Interior accidental mutations stay within the chord.
func (r *Resolver) resolveChordInterior(t *token.Token) {
	child := &Resolver{ctx: r.ctx.childContext(true), diags: r.diags}
	inner, err := child.Run(structure.Stream(t.Inner))
	t.Inner = inner
	if err != nil {
		r.diags.Add(diag.Errorf(diag.MissingContext, t.Offset, t.Src,
			"chord interior resolution failed: %v", err))
	}
}
