// Package utils holds small parsing helpers shared by the transport layer.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is blank or invalid.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// IntInRange parses s like AtoiDefault and clamps the result to [lo, hi].
func IntInRange(s string, def, lo, hi int) int {
	return min(max(AtoiDefault(s, def), lo), hi)
}
