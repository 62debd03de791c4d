// Package validate checks and sanitizes text submitted to the site: names,
// review text, URLs and upload metadata.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors.
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// StringConstraints bounds a string. Lengths count runes; zero means no
// bound.
type StringConstraints struct {
	MinLength      int
	MaxLength      int
	AllowedPattern *regexp.Regexp
	AllowEmpty     bool
	TrimSpace      bool
	// Multiline permits newlines and tabs; other control characters are
	// always rejected.
	Multiline bool
}

// String checks s against c and returns it, trimmed if c.TrimSpace.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if c.AllowEmpty {
			return "", nil
		}
		return "", ErrEmpty
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}

	n := utf8.RuneCountInString(s)
	if c.MinLength > 0 && n < c.MinLength {
		return "", fmt.Errorf("%w: %d chars, need at least %d", ErrStringTooShort, n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return "", fmt.Errorf("%w: %d chars, maximum is %d", ErrStringTooLong, n, c.MaxLength)
	}

	for _, r := range s {
		if unicode.IsControl(r) && !(c.Multiline && (r == '\n' || r == '\r' || r == '\t')) {
			return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
		}
	}
	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}
	return s, nil
}

// SanitizeHTML escapes HTML special characters.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeString validates s and returns it HTML-escaped.
func SanitizeString(s string, c StringConstraints) (string, error) {
	v, err := String(s, c)
	if err != nil {
		return "", err
	}
	return SanitizeHTML(v), nil
}

// Letters in any script, digits, spaces and the punctuation found in drink
// and brand names.
var displayNamePattern = regexp.MustCompile(`^[\p{L}\p{N} _\-\.'&!+]+$`)

// DisplayName validates a brand, product or flavor name of 1-100 characters.
func DisplayName(name string) (string, error) {
	return SanitizeString(name, StringConstraints{
		MinLength:      1,
		MaxLength:      100,
		AllowedPattern: displayNamePattern,
		TrimSpace:      true,
	})
}

// ReviewTitle validates an optional headline of up to 120 characters.
func ReviewTitle(title string) (string, error) {
	return SanitizeString(title, StringConstraints{MaxLength: 120, AllowEmpty: true, TrimSpace: true})
}

// ReviewBody validates required review text of up to 5000 characters.
func ReviewBody(body string) (string, error) {
	return SanitizeString(body, StringConstraints{MinLength: 1, MaxLength: 5000, TrimSpace: true, Multiline: true})
}

// Description validates optional long-form text of up to 5000 characters.
func Description(desc string) (string, error) {
	return SanitizeString(desc, StringConstraints{MaxLength: 5000, AllowEmpty: true, TrimSpace: true, Multiline: true})
}
