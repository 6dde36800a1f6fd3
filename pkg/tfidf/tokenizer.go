package tfidf

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// tokenPattern matches runs of two or more word characters. Unicode letters
// and digits count as word characters, as does the underscore.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Lower folds text to lower case using Unicode rules (final sigma included).
// A Caser carries state, so one is built per call.
func Lower(text string) string {
	return cases.Lower(language.Und).String(text)
}

// Tokenize lower-cases text and returns its word tokens in order of
// appearance. Duplicates are kept.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return tokenPattern.FindAllString(Lower(text), -1)
}
