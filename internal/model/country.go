package model

import (
	"strings"

	"golang.org/x/text/language"
)

// CanonicalCountry returns the ISO 3166-1 alpha-3 code for s when s is an
// alpha-2, alpha-3 or UN M.49 numeric country code. Any other value is
// returned trimmed with ok false so datasets keyed by name still group.
func CanonicalCountry(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if n := len(s); n < 2 || n > 3 {
		return s, false
	}
	r, err := language.ParseRegion(s)
	if err != nil || !r.IsCountry() {
		return s, false
	}
	iso3 := r.Canonicalize().ISO3()
	if iso3 == "" || iso3 == "ZZZ" {
		return s, false
	}
	return iso3, true
}
