// Package normalize canonicalizes raw entity and concept candidates
// into stable keys. Keys are always lower-cased so "OpenAI" and
// "openai" collapse into the same row, while the display form keeps
// whatever casing the type dictates.
package normalize

import (
	"strings"
	"unicode"

	"github.com/linkery/linkgraph/model"
)

// minNameLength rejects single-character noise from classifiers
const minNameLength = 2

// denylist drops generic terms classifiers tend to propose,
// compared case-insensitively
var denylist = map[string]struct{}{
	"user":        {},
	"users":       {},
	"system":      {},
	"data":        {},
	"api":         {},
	"app":         {},
	"tool":        {},
	"service":     {},
	"website":     {},
	"page":        {},
	"content":     {},
	"information": {},
	"thing":       {},
	"stuff":       {},
}

// Normalized is the canonical form of a raw candidate: the lower-cased
// key used for uniqueness and the display form shown to users
type Normalized struct {
	Key     string
	Display string
}

// Entity canonicalizes a raw (name, type) candidate. It returns false
// for names that are too short, deny-listed, or of an unknown type.
// Person and location names are title-cased for display; company,
// product and technology names keep their casing verbatim.
func Entity(raw string, entityType model.EntityType) (*Normalized, bool) {
	if !entityType.Valid() {
		return nil, false
	}

	trimmed := strings.TrimSpace(raw)
	if !acceptable(trimmed) {
		return nil, false
	}

	display := trimmed
	switch entityType {
	case model.EntityTypePerson, model.EntityTypeLocation:
		display = titleCase(trimmed)
	}

	return &Normalized{
		Key:     strings.ToLower(trimmed),
		Display: display,
	}, true
}

// Concept canonicalizes a raw concept name. Concepts have no type
// dimension; the display form is title-cased.
func Concept(raw string) (*Normalized, bool) {
	trimmed := strings.TrimSpace(raw)
	if !acceptable(trimmed) {
		return nil, false
	}

	return &Normalized{
		Key:     strings.ToLower(trimmed),
		Display: titleCase(trimmed),
	}, true
}

// CountMentions counts case-insensitive occurrences of name in text,
// returning at least 1 so a proposed candidate always carries a
// mention even when the classifier paraphrased it
func CountMentions(text string, name string) int {
	if text == "" || name == "" {
		return 1
	}

	count := strings.Count(strings.ToLower(text), strings.ToLower(name))
	if count < 1 {
		return 1
	}
	return count
}

func acceptable(trimmed string) bool {
	if len([]rune(trimmed)) < minNameLength {
		return false
	}
	if _, denied := denylist[strings.ToLower(trimmed)]; denied {
		return false
	}
	return true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
