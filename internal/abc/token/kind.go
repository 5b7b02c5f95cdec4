package token

// Kind tags every lexical unit the ABC lexer can produce. The set is closed:
// dispatch in the resolver is a table keyed by Kind with a Category fallback,
// never a type switch over an open hierarchy.
type Kind int

const (
	KindInvalid Kind = iota

	// General notes
	KindNote
	KindRest
	KindChord

	// Bars. Compound source strings ("::", "|1", ...) expand to two of these
	// at lex time; a Kind always names exactly one logical mark.
	KindBar
	KindBarDouble
	KindBarFinal
	KindBarHeavyLight
	KindBarRepeatStart
	KindBarRepeatEnd
	KindRepeatBracket1
	KindRepeatBracket2

	// Metadata fields. %%directives are rewritten to KindFieldInstruction.
	KindFieldReference
	KindFieldTitle
	KindFieldComposer
	KindFieldOrigin
	KindFieldRhythm
	KindFieldKey
	KindFieldMeter
	KindFieldUnitNoteLength
	KindFieldTempo
	KindFieldVoice
	KindFieldUserDefined
	KindFieldInstruction
	KindFieldLyric
	KindFieldPart
	KindFieldOther

	// Structure marks
	KindTuplet
	KindTie
	KindSlurStart
	KindCrescendoStart
	KindDiminuendoStart
	KindParenStop
	KindGraceStart
	KindGraceStop
	KindBrokenRhythm
	KindVoiceOverlay

	// Articulations
	KindStaccato
	KindAccent
	KindStrongAccent
	KindTenuto
	KindStaccatissimo
	KindUpbow
	KindDownbow

	// Expressions
	KindTrill
	KindFermata
	KindMordent
	KindInvertedMordent
	KindRoll
	KindTurn
	KindSlide
	KindCoda
	KindSegno

	// Quoted chord symbol / annotation, e.g. "Am7"
	KindChordSymbol

	// Single-letter symbol resolved against the U: table during resolution
	KindRedefinableSymbol
)

// Category is the fixed fallback group a Kind belongs to. It replaces the
// ancestor-walk dispatch of a class hierarchy: when the resolver has no rule
// for an exact Kind it uses the Category rule instead.
type Category int

const (
	CategoryNone Category = iota
	CategoryGeneralNote
	CategoryBar
	CategoryField
	CategorySpanner
	CategoryArticulation
	CategoryExpression
)

var kindCategories = map[Kind]Category{
	KindNote:  CategoryGeneralNote,
	KindRest:  CategoryGeneralNote,
	KindChord: CategoryGeneralNote,

	KindBar:            CategoryBar,
	KindBarDouble:      CategoryBar,
	KindBarFinal:       CategoryBar,
	KindBarHeavyLight:  CategoryBar,
	KindBarRepeatStart: CategoryBar,
	KindBarRepeatEnd:   CategoryBar,
	KindRepeatBracket1: CategoryBar,
	KindRepeatBracket2: CategoryBar,

	KindFieldReference:      CategoryField,
	KindFieldTitle:          CategoryField,
	KindFieldComposer:       CategoryField,
	KindFieldOrigin:         CategoryField,
	KindFieldRhythm:         CategoryField,
	KindFieldKey:            CategoryField,
	KindFieldMeter:          CategoryField,
	KindFieldUnitNoteLength: CategoryField,
	KindFieldTempo:          CategoryField,
	KindFieldVoice:          CategoryField,
	KindFieldUserDefined:    CategoryField,
	KindFieldInstruction:    CategoryField,
	KindFieldLyric:          CategoryField,
	KindFieldPart:           CategoryField,
	KindFieldOther:          CategoryField,

	KindSlurStart:       CategorySpanner,
	KindCrescendoStart:  CategorySpanner,
	KindDiminuendoStart: CategorySpanner,

	KindStaccato:      CategoryArticulation,
	KindAccent:        CategoryArticulation,
	KindStrongAccent:  CategoryArticulation,
	KindTenuto:        CategoryArticulation,
	KindStaccatissimo: CategoryArticulation,
	KindUpbow:         CategoryArticulation,
	KindDownbow:       CategoryArticulation,

	KindTrill:           CategoryExpression,
	KindFermata:         CategoryExpression,
	KindMordent:         CategoryExpression,
	KindInvertedMordent: CategoryExpression,
	KindRoll:            CategoryExpression,
	KindTurn:            CategoryExpression,
	KindSlide:           CategoryExpression,
	KindCoda:            CategoryExpression,
	KindSegno:           CategoryExpression,
}

// Category returns the fallback group for a Kind, CategoryNone when the Kind
// only ever dispatches exactly.
func (k Kind) Category() Category {
	return kindCategories[k]
}

var kindNames = map[Kind]string{
	KindInvalid:             "invalid",
	KindNote:                "note",
	KindRest:                "rest",
	KindChord:               "chord",
	KindBar:                 "bar",
	KindBarDouble:           "bar_double",
	KindBarFinal:            "bar_final",
	KindBarHeavyLight:       "bar_heavy_light",
	KindBarRepeatStart:      "bar_repeat_start",
	KindBarRepeatEnd:        "bar_repeat_end",
	KindRepeatBracket1:      "repeat_bracket_1",
	KindRepeatBracket2:      "repeat_bracket_2",
	KindFieldReference:      "field_reference",
	KindFieldTitle:          "field_title",
	KindFieldComposer:       "field_composer",
	KindFieldOrigin:         "field_origin",
	KindFieldRhythm:         "field_rhythm",
	KindFieldKey:            "field_key",
	KindFieldMeter:          "field_meter",
	KindFieldUnitNoteLength: "field_unit_note_length",
	KindFieldTempo:          "field_tempo",
	KindFieldVoice:          "field_voice",
	KindFieldUserDefined:    "field_user_defined",
	KindFieldInstruction:    "field_instruction",
	KindFieldLyric:          "field_lyric",
	KindFieldPart:           "field_part",
	KindFieldOther:          "field_other",
	KindTuplet:              "tuplet",
	KindTie:                 "tie",
	KindSlurStart:           "slur_start",
	KindCrescendoStart:      "crescendo_start",
	KindDiminuendoStart:     "diminuendo_start",
	KindParenStop:           "paren_stop",
	KindGraceStart:          "grace_start",
	KindGraceStop:           "grace_stop",
	KindBrokenRhythm:        "broken_rhythm",
	KindVoiceOverlay:        "voice_overlay",
	KindStaccato:            "staccato",
	KindAccent:              "accent",
	KindStrongAccent:        "strong_accent",
	KindTenuto:              "tenuto",
	KindStaccatissimo:       "staccatissimo",
	KindUpbow:               "upbow",
	KindDownbow:             "downbow",
	KindTrill:               "trill",
	KindFermata:             "fermata",
	KindMordent:             "mordent",
	KindInvertedMordent:     "inverted_mordent",
	KindRoll:                "roll",
	KindTurn:                "turn",
	KindSlide:               "slide",
	KindCoda:                "coda",
	KindSegno:               "segno",
	KindChordSymbol:         "chord_symbol",
	KindRedefinableSymbol:   "redefinable_symbol",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsGeneralNote reports whether the Kind participates in duration, tie,
// tuplet and lyric accounting.
func (k Kind) IsGeneralNote() bool { return k.Category() == CategoryGeneralNote }

// IsBar reports whether the Kind is any bar-line variant.
func (k Kind) IsBar() bool { return k.Category() == CategoryBar }

// IsField reports whether the Kind is a metadata field.
func (k Kind) IsField() bool { return k.Category() == CategoryField }
