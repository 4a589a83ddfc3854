// Package textnorm folds labels and field facets into a comparable form.
package textnorm

import "strings"

// Normalize lowercases s, trims it and collapses every whitespace run to a
// single space. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Contains reports whether the normalized needle occurs in the normalized
// haystack. An empty needle or haystack never matches.
func Contains(haystack, needle string) bool {
	h, n := Normalize(haystack), Normalize(needle)
	if h == "" || n == "" {
		return false
	}
	return strings.Contains(h, n)
}
