package auth

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tendant/planhub/pkg/domain"
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeInput strips markup and control characters from free text. The
// result is plain text; escaping is left to whatever renders it.
func SanitizeInput(input string) string {
	cleaned := strictPolicy.Sanitize(removeControlChars(input))
	return html.UnescapeString(cleaned)
}

// SanitizeName sanitizes a display name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\n", " ")
	return strings.TrimSpace(SanitizeInput(name))
}

// ValidateStringLength validates that a string is within the specified length constraints.
func ValidateStringLength(field, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if min > 0 && length < min {
		return domain.Invalid("%s must be at least %d characters long", field, min)
	}

	if max > 0 && length > max {
		return domain.Invalid("%s must be at most %d characters long", field, max)
	}

	return nil
}

// removeControlChars removes control characters except newline and tab.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		// Keep newline, carriage return, and tab
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
