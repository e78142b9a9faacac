package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, strips accents and joins the remaining words with dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		plain = strings.ToLower(s)
	}
	return strings.Trim(nonSlug.ReplaceAllString(plain, "-"), "-")
}

// ObituarySlug is the name slug suffixed with the year of death.
func ObituarySlug(fullName string, deathDate time.Time) string {
	return fmt.Sprintf("%s-%d", Slugify(fullName), deathDate.Year())
}
