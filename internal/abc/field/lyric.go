package field

import "strings"

// SyllableKind distinguishes sung text from the control marks of a w: line.
type SyllableKind int

const (
	// SyllableText carries sung text to attach to the next note.
	SyllableText SyllableKind = iota
	// SyllableSkip ("*") leaves the next note without a syllable.
	SyllableSkip
	// SyllableContinue ("-") extends the previous syllable onto the next
	// note (a melisma drawn with a hyphen).
	SyllableContinue
	// SyllableHeld ("_") holds the previous syllable through the next note.
	SyllableHeld
	// SyllableBar ("|") advances alignment to the next measure.
	SyllableBar
)

// Syllable is one alignment unit of a lyric line.
type Syllable struct {
	Kind SyllableKind `json:"kind"`
	Text string       `json:"text,omitempty"`
	// Hyphenated marks a text syllable followed by "-" in the source, i.e.
	// the word continues on the next note.
	Hyphenated bool `json:"hyphenated,omitempty"`
}

// ParseLyrics splits a w: payload into alignment syllables. Words split on
// whitespace; hyphens split a word into per-note syllables; "*", "_" and "|"
// are control syllables. A "~" joins two words under one note and is kept as
// a space in the syllable text.
func ParseLyrics(payload string) []Syllable {
	var out []Syllable
	for _, word := range strings.Fields(payload) {
		word = strings.ReplaceAll(word, "~", " ")
		for word != "" {
			switch word[0] {
			case '*':
				out = append(out, Syllable{Kind: SyllableSkip})
				word = word[1:]
			case '_':
				out = append(out, Syllable{Kind: SyllableHeld})
				word = word[1:]
			case '|':
				out = append(out, Syllable{Kind: SyllableBar})
				word = word[1:]
			case '-':
				// A bare leading hyphen continues the previous syllable.
				out = append(out, Syllable{Kind: SyllableContinue})
				word = word[1:]
			default:
				end := strings.IndexAny(word, "-_|*")
				if end < 0 {
					out = append(out, Syllable{Kind: SyllableText, Text: word})
					word = ""
					break
				}
				syl := Syllable{Kind: SyllableText, Text: word[:end]}
				if word[end] == '-' {
					syl.Hyphenated = true
					word = word[end+1:]
				} else {
					word = word[end:]
				}
				out = append(out, syl)
			}
		}
	}
	return out
}
