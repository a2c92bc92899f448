package utils

import (
	"strings"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders an amount in rupees with Indian digit grouping.
func FormatINR(amount float64) string {
	return inPrinter.Sprintf("₹%.2f", amount)
}

// NormalizeName collapses whitespace and title-cases a person or college name.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Fold lower-cases and transliterates text for fuzzy matching.
func Fold(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}
