// Package match implements the naive duplicate check shared by the broker
// and the hospital nodes: two records describe the same person iff their
// names compare equal case-insensitively and their birth-date strings are
// exactly equal. No phonetic, fuzzy, or identifier-based matching; a typo
// registers a second person.
package match

import "strings"

// SamePerson reports whether two (name, birth date) pairs collide under the
// dedup rule. Names are compared case-insensitively after trimming
// surrounding whitespace; birth dates are compared as exact strings.
func SamePerson(aName, aBirth, bName, bBirth string) bool {
	if !strings.EqualFold(strings.TrimSpace(aName), strings.TrimSpace(bName)) {
		return false
	}
	return aBirth == bBirth
}
