package testsupport

import (
	"context"
	"testing"
	"time"

	"titlecache/internal/config"
	"titlecache/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Seed upserts the given titles with one shared timestamp.
func Seed(t testing.TB, st *store.Store, updated time.Time, titles ...Title) {
	t.Helper()

	records := make([]store.Record, 0, len(titles))
	for _, title := range titles {
		records = append(records, store.Record{ID: title.ID, Payload: title.JSON(), LastUpdated: updated})
	}
	if err := st.Upsert(context.Background(), records); err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
}
