package field

import (
	"fmt"
	"strings"
)

// Instruction is the typed value of an I: field or a %%directive line, a
// key/value pair applied from its stream position onward.
type Instruction struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// Directive keys the resolver understands. Anything else passes through to
// the consumer untouched.
const (
	InstrPropagateAccidentals = "PROPAGATE-ACCIDENTALS"
	InstrAbcVersion           = "abc-version"
)

// ParseInstruction interprets an I: payload: the first word is the key, the
// remainder the value.
func ParseInstruction(payload string) (Instruction, error) {
	s := strings.TrimSpace(payload)
	if s == "" {
		return Instruction{}, fmt.Errorf("instruction: empty payload")
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return Instruction{Key: s[:i], Value: strings.TrimSpace(s[i+1:])}, nil
	}
	return Instruction{Key: s}, nil
}

// PropagationMode is how an explicit accidental affects later notes in the
// same measure.
type PropagationMode string

const (
	PropagateNot    PropagationMode = "not"    // no carrying
	PropagatePitch  PropagationMode = "pitch"  // carry per pitch class
	PropagateOctave PropagationMode = "octave" // carry per pitch class and octave
)

// ParsePropagationMode validates a PROPAGATE-ACCIDENTALS value.
func ParsePropagationMode(value string) (PropagationMode, error) {
	switch PropagationMode(strings.ToLower(strings.TrimSpace(value))) {
	case PropagateNot:
		return PropagateNot, nil
	case PropagatePitch:
		return PropagatePitch, nil
	case PropagateOctave:
		return PropagateOctave, nil
	}
	return "", fmt.Errorf("invalid PROPAGATE-ACCIDENTALS value %q", value)
}

// UserDefinition is the parsed form of a U: field: a single-letter symbol and
// its replacement notation. Empty Definition means the symbol is undefined
// (the payload used one of the "no definition" sentinels).
type UserDefinition struct {
	Symbol     string `json:"symbol"`
	Definition string `json:"definition"`
}

// ParseUserDefined interprets a U: payload such as "T = !trill!" or
// "H = !nil!". The sentinels !nil! and !none! remove an existing definition.
func ParseUserDefined(payload string) (UserDefinition, error) {
	parts := strings.SplitN(payload, "=", 2)
	if len(parts) != 2 {
		return UserDefinition{}, fmt.Errorf("user definition: missing '=' in %q", payload)
	}
	symbol := strings.TrimSpace(parts[0])
	if len(symbol) != 1 {
		return UserDefinition{}, fmt.Errorf("user definition: symbol must be one character in %q", payload)
	}
	definition := strings.TrimSpace(parts[1])
	if definition == "!nil!" || definition == "!none!" {
		definition = ""
	}
	return UserDefinition{Symbol: symbol, Definition: definition}, nil
}
