package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is one cached title.
type Record struct {
	ID          string
	Payload     json.RawMessage
	LastUpdated time.Time
}

// Stats summarizes the table.
type Stats struct {
	Count  int
	Oldest time.Time
	Newest time.Time
	Path   string
}

const upsertSQL = `INSERT INTO titles (id, data, last_updated) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, last_updated = excluded.last_updated
WHERE excluded.last_updated >= titles.last_updated`

// Upsert inserts or replaces records by id in a single transaction. A row is
// left untouched when the incoming timestamp is older than the stored one.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	ctx = ensureContext(ctx)
	if len(records) == 0 {
		return nil
	}
	rows := make([]Record, len(records))
	for i, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return fmt.Errorf("upsert record %d: empty id", i)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, rec.Payload); err != nil {
			return fmt.Errorf("upsert %s: payload is not valid JSON: %w", id, err)
		}
		rows[i] = Record{ID: id, Payload: compact.Bytes(), LastUpdated: rec.LastUpdated}
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin upsert tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range rows {
			if _, err := stmt.ExecContext(ctx, rec.ID, string(rec.Payload), toUnix(rec.LastUpdated)); err != nil {
				return fmt.Errorf("upsert %s: %w", rec.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit upsert: %w", err)
		}
		return nil
	})
}

// Get returns the record for id, or nil when it is not cached.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT id, data, last_updated FROM titles WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return &rec, nil
}

// LastUpdated returns the refresh time of each cached id. Ids that are not
// cached are absent from the map.
func (s *Store) LastUpdated(ctx context.Context, ids []string) (map[string]time.Time, error) {
	ctx = ensureContext(ctx)
	out := make(map[string]time.Time, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, last_updated FROM titles WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("query last_updated: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id      string
			updated float64
		)
		if err := rows.Scan(&id, &updated); err != nil {
			return nil, fmt.Errorf("scan last_updated: %w", err)
		}
		out[id] = fromUnix(updated)
	}
	return out, rows.Err()
}

// Count returns the number of cached titles.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM titles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count titles: %w", err)
	}
	return n, nil
}

// Stats reports the row count and the refresh time range.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var (
		n              int
		oldest, newest sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), MIN(last_updated), MAX(last_updated) FROM titles").
		Scan(&n, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("title stats: %w", err)
	}
	stats := Stats{Count: n, Path: s.path}
	if oldest.Valid {
		stats.Oldest = fromUnix(oldest.Float64)
	}
	if newest.Valid {
		stats.Newest = fromUnix(newest.Float64)
	}
	return stats, nil
}

// Each calls fn for every record in id order. Iteration stops at the first error.
func (s *Store) Each(ctx context.Context, fn func(Record) error) error {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT id, data, last_updated FROM titles ORDER BY id")
	if err != nil {
		return fmt.Errorf("scan titles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return fmt.Errorf("scan title: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec     Record
		data    string
		updated float64
	)
	if err := row.Scan(&rec.ID, &data, &updated); err != nil {
		return Record{}, err
	}
	rec.Payload = json.RawMessage(data)
	rec.LastUpdated = fromUnix(updated)
	return rec, nil
}
