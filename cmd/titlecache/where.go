package main

import (
	"fmt"
	"strconv"
	"strings"

	"titlecache/internal/pathquery"
)

// parseWhere turns "path=value" into a predicate. "lo..hi" is an inclusive
// numeric range, a number is an exact match and anything else a substring.
func parseWhere(expr string) (pathquery.Predicate, error) {
	path, raw, ok := strings.Cut(expr, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return pathquery.Predicate{}, fmt.Errorf("invalid --where %q: expected path=value", expr)
	}
	return pathquery.Predicate{Path: path, Value: parseValue(raw)}, nil
}

func parseValue(raw string) pathquery.Value {
	trimmed := strings.TrimSpace(raw)
	if lo, hi, ok := strings.Cut(trimmed, ".."); ok {
		l, errLo := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		h, errHi := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if errLo == nil && errHi == nil {
			return pathquery.Between(l, h)
		}
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return pathquery.Equals(n)
	}
	return pathquery.Substring(raw)
}
