// Package identity implements the student-identity exclusion rule shared by
// every duplicate detector. Submitted and archived filenames start with a
// 9-digit student ID (RUID); two files with the same RUID are a resubmission
// by the same student, not a violation.
package identity

import (
	"path/filepath"
	"regexp"

	"golang.org/x/exp/slices"
)

var ruidRe = regexp.MustCompile(`^[0-9]{9}`)

// Prefix extracts the leading 9-digit RUID from a file name or path.
// Returns "" when the basename does not start with 9 digits.
func Prefix(name string) string {
	return ruidRe.FindString(filepath.Base(name))
}

// SameStudent reports whether both names carry the same RUID prefix.
// A missing prefix on either side is not evidence of identity, so the
// result is false and the comparison stays reportable.
func SameStudent(a, b string) bool {
	pa := Prefix(a)
	if pa == "" {
		return false
	}
	return pa == Prefix(b)
}

// FilterGroup collapses a duplicate group to at most one name per RUID,
// keeping every name without a RUID. Input order does not matter; the
// survivor per RUID is the lexicographically first name.
func FilterGroup(names []string) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	slices.Sort(sorted)

	seen := make(map[string]struct{})
	filtered := sorted[:0]
	for _, name := range sorted {
		if ruid := Prefix(name); ruid != "" {
			if _, ok := seen[ruid]; ok {
				continue
			}
			seen[ruid] = struct{}{}
		}
		filtered = append(filtered, name)
	}
	return filtered
}
