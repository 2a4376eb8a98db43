// Package normalize canonicalizes guest-entered names.
//
// Two forms exist. KeyName is used to build generic-mode store keys: it
// folds case and whitespace, so resubmissions that differ only by casing
// or spacing land on the same ledger entry. MatchName additionally strips
// diacritics and is used for duplicate detection and admin search, so
// "José Pérez" and "jose perez" are distinct entries that flag each other.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// KeyName trims, case-folds and collapses internal whitespace.
func KeyName(name string) string {
	return strings.Join(strings.Fields(folder.String(norm.NFC.String(name))), " ")
}

// MatchName is KeyName with combining marks removed.
func MatchName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return KeyName(stripped)
}
