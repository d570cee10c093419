package textutil

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// StripParenthetical drops everything from the first "(" and trims the rest.
func StripParenthetical(value string) string {
	if idx := strings.IndexByte(value, '('); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

// NormalizeIDs trims ids, drops blanks and duplicates, and sorts the result.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SortedUnique returns the distinct non-empty values in ascending order.
func SortedUnique(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Fold returns the Unicode case-folded form of value for comparisons.
func Fold(value string) string {
	return cases.Fold().String(value)
}

// ContainsFold reports whether needle occurs in value ignoring case.
func ContainsFold(value, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(value), Fold(needle))
}
