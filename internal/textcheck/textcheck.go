// Package textcheck validates passages against the character set a typing
// test can ask a student to reproduce.
package textcheck

import (
	"strconv"
	"strings"
)

// Printable ASCII, space through tilde. Tabs and newlines are excluded so every
// character in a passage can be typed into a single-line input.
const (
	minAllowed = 0x20
	maxAllowed = 0x7E
)

// Result reports whether a text is made only of allowed characters.
// InvalidChars lists each offending character once, in order of first
// appearance.
type Result struct {
	Valid        bool
	InvalidChars []rune
}

// IsAllowed reports whether r belongs to the allowed character set.
func IsAllowed(r rune) bool {
	return r >= minAllowed && r <= maxAllowed
}

// Validate checks every character of text. The empty string is valid.
func Validate(text string) Result {
	var invalid []rune
	seen := make(map[rune]bool)
	for _, r := range text {
		if IsAllowed(r) || seen[r] {
			continue
		}
		seen[r] = true
		invalid = append(invalid, r)
	}
	return Result{Valid: len(invalid) == 0, InvalidChars: invalid}
}

// Describe renders invalid characters for an error message, quoting each so
// control characters stay visible.
func (r Result) Describe() string {
	var sb strings.Builder
	for i, c := range r.InvalidChars {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.QuoteRune(c))
	}
	return sb.String()
}
