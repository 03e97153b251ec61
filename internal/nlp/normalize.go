// Package nlp holds the lexical side of matching: text normalization,
// résumé chunking and skill synonym expansion. Everything here is pure and
// safe for concurrent use.
package nlp

import (
	"regexp"
	"strings"
)

var (
	reSeparators = regexp.MustCompile(`[-_]`)
	reNonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Normalize brings text to the comparable form used for matching:
// lowercase, hyphens and underscores turned into spaces, punctuation
// stripped, whitespace collapsed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := strings.ToLower(text)
	s = reSeparators.ReplaceAllString(s, " ")
	s = reNonWord.ReplaceAllString(s, "")
	// underscores survive the strip above because they count as word runes.
	s = strings.ReplaceAll(s, "_", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ContainsPhrase reports whether an already normalized phrase occurs in an
// already normalized text as whole words.
// "rest api" is found in "... rest api ..." but not in "... rest apis ...".
func ContainsPhrase(normalizedText, normalizedPhrase string) bool {
	if normalizedPhrase == "" || normalizedText == "" {
		return false
	}
	hay := " " + normalizedText + " "
	needle := " " + normalizedPhrase + " "
	return strings.Contains(hay, needle)
}

// TokenCount returns the number of whitespace-delimited tokens of raw text.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}
