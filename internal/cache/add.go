package cache

import (
	"context"
	"fmt"

	"titlecache/internal/fetcher"
	"titlecache/internal/logging"
	"titlecache/internal/services"
	"titlecache/internal/store"
	"titlecache/internal/textutil"
	"titlecache/internal/worker"
)

// AddResult tallies one Add call.
type AddResult struct {
	Requested int            `json:"requested"`
	Fresh     int            `json:"fresh"`
	Fetched   int            `json:"fetched"`
	Stored    int            `json:"stored"`
	Filtered  int            `json:"filtered"`
	Missing   int            `json:"missing"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// BatchFailure records a sub-batch skipped because the remote call failed.
type BatchFailure struct {
	Batch   int      `json:"batch"`
	IDs     []string `json:"ids"`
	Message string   `json:"error"`
	Err     error    `json:"-"`
}

// Add refreshes the given ids. Blank and duplicate ids are dropped and the
// rest are processed in sorted order, in sub-batches of the configured size.
// Ids cached less than a TTL ago are left alone. A failed or malformed remote
// response skips its sub-batch and is reported in the result; a storage
// failure stops the call and is returned as services.ErrStorage. Sub-batches
// committed before an error or cancellation stay committed.
func (m *Manager) Add(ctx context.Context, ids ...string) (AddResult, error) {
	if m.addTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.addTimeout)
		defer cancel()
	}

	normalized := textutil.NormalizeIDs(ids)
	result := AddResult{Requested: len(normalized)}
	batches, err := Chunk(normalized, m.batchSize)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "cache", "add", "split batches", err)
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		bctx := services.WithBatchIndex(ctx, i+1)
		if err := m.addBatch(bctx, i+1, batch, &result); err != nil {
			return result, err
		}
	}

	if result.Fetched > 0 || len(result.Failures) > 0 {
		m.logger.Info("titles refreshed",
			logging.String(logging.FieldEventType, "cache_add_complete"),
			logging.Int("requested", result.Requested),
			logging.Int("fresh", result.Fresh),
			logging.Int("stored", result.Stored),
			logging.Int("filtered", result.Filtered),
			logging.Int("missing", result.Missing),
			logging.Int("failed_batches", len(result.Failures)),
		)
	}
	return result, nil
}

// AddAsync runs Add on its own goroutine.
func (m *Manager) AddAsync(ctx context.Context, ids ...string) *worker.Future[AddResult] {
	return worker.Go(ctx, func(ctx context.Context) (AddResult, error) {
		return m.Add(ctx, ids...)
	})
}

func (m *Manager) addBatch(ctx context.Context, index int, batch []string, result *AddResult) error {
	logger := logging.WithContext(ctx, m.logger)

	stale, err := worker.Do(ctx, m.storeLane, func(ctx context.Context) ([]string, error) {
		return m.staleIDs(ctx, batch)
	})
	if err != nil {
		return m.storageError("check freshness", err)
	}
	result.Fresh += len(batch) - len(stale)
	if len(stale) == 0 {
		logger.Debug("batch fresh, skipping remote", logging.Strings("ids", batch))
		return nil
	}

	titles, err := worker.Do(ctx, m.fetchPool, func(ctx context.Context) ([]fetcher.RemoteTitle, error) {
		return m.remote.BatchGet(ctx, stale)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.WarnWithContext(logger, "remote batch failed", "remote_batch_failed",
			logging.Strings("ids", stale),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check remote availability and rate limits"),
			logging.String(logging.FieldImpact, "batch skipped; ids stay stale until the next add"),
		)
		result.Failures = append(result.Failures, BatchFailure{Batch: index, IDs: stale, Message: err.Error(), Err: err})
		return nil
	}
	result.Fetched += len(stale)

	fetchedAt := m.now()
	wanted := make(map[string]bool, len(stale))
	for _, id := range stale {
		wanted[id] = false
	}
	records := make([]store.Record, 0, len(titles))
	for _, title := range titles {
		seen, requested := wanted[title.ID]
		if !requested || seen {
			continue
		}
		wanted[title.ID] = true
		if m.titleType != "" && title.Type != m.titleType {
			result.Filtered++
			continue
		}
		records = append(records, store.Record{ID: title.ID, Payload: title.Raw, LastUpdated: fetchedAt})
	}
	for _, returned := range wanted {
		if !returned {
			result.Missing++
		}
	}
	if len(records) == 0 {
		return nil
	}

	_, err = worker.Do(ctx, m.storeLane, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.store.Upsert(ctx, records)
	})
	if err != nil {
		return m.storageError(fmt.Sprintf("store batch %d", index), err)
	}
	result.Stored += len(records)
	logger.Debug("batch stored", logging.Int("stored", len(records)))
	return nil
}

// staleIDs returns the ids in batch that are missing or at least a TTL old.
func (m *Manager) staleIDs(ctx context.Context, batch []string) ([]string, error) {
	updated, err := m.store.LastUpdated(ctx, batch)
	if err != nil {
		return nil, err
	}
	now := m.now()
	stale := make([]string, 0, len(batch))
	for _, id := range batch {
		last, ok := updated[id]
		if !ok || now.Sub(last) >= m.ttl {
			stale = append(stale, id)
		}
	}
	return stale, nil
}
