// Package utils provides small helpers for parsing request query values.
package utils

import "strconv"

// AtoiDefault converts s to an int, returning def when s is empty or not a
// valid integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// LimitOrDefault parses a page-size query value. Missing, malformed, or
// out-of-range values (below 1 or above max) fall back to def.
func LimitOrDefault(s string, def, max int) int {
	n := AtoiDefault(s, def)
	if n < 1 || n > max {
		return def
	}
	return n
}
