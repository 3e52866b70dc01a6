package grading

import (
	"strings"
	"unicode"
)

// foldText lowercases s, drops punctuation and collapses whitespace runs.
func foldText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
