// Package codec compresses exact stock phrases into dictionary indices.
//
// Indices are positional: inserting or reordering entries remaps every stored
// token after that point. Version exposes a content hash so a change is visible
// in logs.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Dictionary is an ordered, immutable list of phrases. Index = position.
type Dictionary []string

// defaultPhrases must not contain words the router classifies as intents
// (archive, weather) or follow-up answers (yes, no).
var defaultPhrases = []string{
	"hello",
	"hi there",
	"good morning",
	"good night",
	"thank you",
	"how are you?",
	"what's up?",
	"see you later",
	"on my way",
	"sounds good",
	"i agree",
	"call me back",
	"be right back",
	"talk soon",
	"love you",
}

// DefaultDictionary returns a copy of the built-in phrase set.
func DefaultDictionary() Dictionary {
	d := make(Dictionary, len(defaultPhrases))
	copy(d, defaultPhrases)
	return d
}

// Encode returns the index of the first entry equal to phrase, ignoring case
// and surrounding whitespace. There is no fuzzy matching.
func Encode(phrase string, d Dictionary) (int, bool) {
	needle := strings.TrimSpace(phrase)
	if needle == "" {
		return 0, false
	}
	for i, entry := range d {
		if strings.EqualFold(needle, entry) {
			return i, true
		}
	}
	return 0, false
}

// Decode returns the phrase at index. It never fails: an index with no entry
// yields a sentinel string instead.
func Decode(index int, d Dictionary) string {
	if index < 0 || index >= len(d) {
		return fmt.Sprintf("[TOKEN_ERROR: unknown index %d]", index)
	}
	return d[index]
}

// Encode is the method form of the package-level Encode.
func (d Dictionary) Encode(phrase string) (int, bool) { return Encode(phrase, d) }

// Decode is the method form of the package-level Decode.
func (d Dictionary) Decode(index int) string { return Decode(index, d) }

// Version returns a short hash of the ordered entries.
func (d Dictionary) Version() string {
	h := sha256.New()
	for _, entry := range d {
		h.Write([]byte(entry))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
