package store

import (
	"context"
	"fmt"
	"strconv"

	"titlecache/internal/pathquery"
)

// Find returns the records matching the predicates joined by c, ordered by
// id. Predicates with skip values are ignored, and with none left every
// record matches.
func (s *Store) Find(ctx context.Context, c pathquery.Combinator, preds ...pathquery.Predicate) ([]Record, error) {
	ctx = ensureContext(ctx)
	where, err := s.target.CompileAll(c, preds...)
	if err != nil {
		return nil, err
	}
	query := "SELECT id, data, last_updated FROM titles"
	if !where.Empty() {
		query += " WHERE " + where.SQL
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, where.Args...)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DistinctValues returns up to limit distinct non-null values found at path
// that contain needle case-insensitively, ordered by value.
func (s *Store) DistinctValues(ctx context.Context, path, needle string, limit int) ([]string, error) {
	ctx = ensureContext(ctx)
	source, err := s.target.ValueSource(path)
	if err != nil {
		return nil, err
	}
	filter := pathquery.ContainsFilter("v", needle)
	query := "SELECT DISTINCT v FROM (" + source.SQL + ") WHERE v IS NOT NULL AND " + filter.SQL + " ORDER BY v"
	args := append(append([]any{}, source.Args...), filter.Args...)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct values for %s: %w", path, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, renderValue(v))
	}
	return out, rows.Err()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
