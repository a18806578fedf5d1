// Package sanitize cleans server-supplied text before it reaches the terminal.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// ansiEscapeRegex matches CSI and OSC escape sequences.
	ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)

	// whitespaceRegex matches runs of whitespace, newlines included.
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// ForTerminal strips escape sequences and control characters from s and
// folds whitespace so one value renders on one table line.
func ForTerminal(s string) string {
	if s == "" {
		return ""
	}

	s = ansiEscapeRegex.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
