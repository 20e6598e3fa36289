package textutil

import (
	"regexp"
	"strings"
)

// wordRe matches the Unicode equivalent of \w: letters, digits and underscore.
var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokens returns the lowercased word tokens of s in order.
func Tokens(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// Normalize reduces s to its lowercased word tokens joined by single spaces.
// This is the searchable form of a message body.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}
