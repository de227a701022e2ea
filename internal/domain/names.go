package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName derives the natural key of a retailer or store from its
// display name.
func NormalizeName(name string) string {
	// A Caser keeps state and is not safe for concurrent use.
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}
