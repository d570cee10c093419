package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"titlecache/internal/pathquery"
	"titlecache/internal/services"
	"titlecache/internal/store"
	"titlecache/internal/textutil"
	"titlecache/internal/worker"
)

// Title is a cached title document as returned by the remote service.
type Title = map[string]any

// Get returns the cached document for id without contacting the remote
// service. An id that is not cached is reported as services.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (Title, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "cache", "get", "title id is required", nil)
	}
	rec, err := worker.Do(ctx, m.storeLane, func(ctx context.Context) (*store.Record, error) {
		return m.store.Get(ctx, id)
	})
	if err != nil {
		return nil, m.storageError("get", err)
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "cache", "get", id+" is not cached", nil)
	}
	var doc Title
	if err := json.Unmarshal(rec.Payload, &doc); err != nil {
		return nil, m.storageError("get", fmt.Errorf("decode %s: %w", id, err))
	}
	return doc, nil
}

// Query returns every cached title matching the predicates joined by c, in
// id order. Malformed paths are reported as services.ErrValidation.
func (m *Manager) Query(ctx context.Context, c pathquery.Combinator, preds ...pathquery.Predicate) ([]Title, error) {
	records, err := worker.Do(ctx, m.storeLane, func(ctx context.Context) ([]Title, error) {
		found, err := m.store.Find(ctx, c, preds...)
		if err != nil {
			return nil, err
		}
		out := make([]Title, 0, len(found))
		for _, rec := range found {
			var doc Title
			if err := json.Unmarshal(rec.Payload, &doc); err != nil {
				return nil, fmt.Errorf("decode %s: %w", rec.ID, err)
			}
			out = append(out, doc)
		}
		return out, nil
	})
	if err != nil {
		return nil, m.queryError("query", err)
	}
	return records, nil
}

// Autocomplete suggests distinct values found at path that contain query,
// ignoring case. post, when set, rewrites each value before deduplication;
// empty results of post are dropped. At most limit values are returned,
// DefaultSuggestions when limit is not positive.
func (m *Manager) Autocomplete(ctx context.Context, query, path string, limit int, post func(string) string) ([]string, error) {
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	// post may merge values, so the database limit only applies without it.
	dbLimit := limit
	if post != nil {
		dbLimit = 0
	}
	values, err := worker.Do(ctx, m.storeLane, func(ctx context.Context) ([]string, error) {
		return m.store.DistinctValues(ctx, path, query, dbLimit)
	})
	if err != nil {
		return nil, m.queryError("autocomplete", err)
	}
	if post != nil {
		for i, v := range values {
			values[i] = post(v)
		}
		// The database matched before rewriting; re-check against the result.
		kept := values[:0]
		for _, v := range values {
			if textutil.ContainsFold(v, query) {
				kept = append(kept, v)
			}
		}
		values = kept
	}
	values = textutil.SortedUnique(values)
	if len(values) > limit {
		values = values[:limit]
	}
	return values, nil
}

func (m *Manager) queryError(op string, err error) error {
	if errors.Is(err, pathquery.ErrInvalidPath) {
		return services.Wrap(services.ErrValidation, "cache", op, "", err)
	}
	return m.storageError(op, err)
}
