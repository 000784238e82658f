// Package query turns free text into a provider query scoped to the
// supported file hosts.
package query

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FranksOps/coursefinder/internal/platform"
)

// MinLength is the shortest accepted query, in runes, after normalization.
const MinLength = 2

// ErrValidation is returned when the text is empty or too short after
// normalization.
var ErrValidation = errors.New("query is empty or too short")

var (
	courseTerms   = []string{"course", "tutorial", "lessons", "training", "class"}
	downloadTerms = []string{"download", "files", "resources", "materials"}
)

// Normalize replaces every rune that is not a letter, digit, underscore or
// whitespace with a space, collapses whitespace runs and trims the result.
func Normalize(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(mapped), " ")
}

// Validate normalizes text and rejects it with ErrValidation when fewer
// than MinLength runes remain.
func Validate(text string) (string, error) {
	q := Normalize(text)
	if utf8.RuneCountInString(q) < MinLength {
		return "", ErrValidation
	}
	return q, nil
}

// Build validates text, appends "course" and "download" when no term of
// the matching indicator group is present, and restricts the query to
// site when it is a supported domain, or to all supported domains
// otherwise.
func Build(text, site string) (string, error) {
	q, err := Validate(text)
	if err != nil {
		return "", err
	}

	lower := strings.ToLower(q)
	if !containsAny(lower, courseTerms) {
		q += " course"
	}
	if !containsAny(lower, downloadTerms) {
		q += " download"
	}

	if site != "" && platform.IsDomain(site) {
		return q + " site:" + site, nil
	}
	return q + " " + SiteFilter(), nil
}

// SiteFilter renders the OR-joined restriction over every supported domain.
func SiteFilter() string {
	parts := make([]string, len(platform.Domains))
	for i, d := range platform.Domains {
		parts[i] = "site:" + d
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
