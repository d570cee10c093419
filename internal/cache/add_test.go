package cache_test

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"titlecache/internal/cache"
	"titlecache/internal/fetcher"
	"titlecache/internal/services"
	"titlecache/internal/store"
	"titlecache/internal/testsupport"
)

func catalogIDs() []string {
	var out []string
	for _, title := range testsupport.Catalog() {
		out = append(out, title.ID)
	}
	return out
}

func TestAddFetchesInSortedBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids := catalogIDs()
	// Reverse the input to show processing order does not depend on it.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	result, err := f.manager.Add(ctx, ids...)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := [][]string{
		{"tt0068646", "tt0111161", "tt0118799", "tt0211915", "tt0903747"},
		{"tt9999990", "tt9999991"},
	}
	if got := f.remote.Requests(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected requests\n got %v\nwant %v", got, want)
	}
	if result.Requested != 7 || result.Fetched != 7 || result.Stored != 6 || result.Filtered != 1 || result.Missing != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	rec, err := f.store.Get(ctx, "tt0903747")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatal("tvSeries title should have been filtered out")
	}
	rec, err = f.store.Get(ctx, "tt0111161")
	if err != nil || rec == nil {
		t.Fatalf("expected stored title, got %v, %v", rec, err)
	}
	if !rec.LastUpdated.Equal(f.clock.Now()) {
		t.Fatalf("expected last_updated %s, got %s", f.clock.Now(), rec.LastUpdated)
	}
}

func TestAddRespectsTTL(t *testing.T) {
	f := newFixture(t, testsupport.WithTTL(time.Hour))
	ctx := context.Background()
	ids := []string{"tt0111161", "tt0068646"}

	if _, err := f.manager.Add(ctx, ids...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if f.remote.Calls() != 1 {
		t.Fatalf("expected 1 remote call, got %d", f.remote.Calls())
	}

	f.clock.Advance(time.Hour - time.Second)
	result, err := f.manager.Add(ctx, ids...)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if f.remote.Calls() != 1 {
		t.Fatalf("fresh titles should not hit the remote, got %d calls", f.remote.Calls())
	}
	if result.Fresh != 2 || result.Fetched != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	// Exactly one TTL old counts as stale.
	f.clock.Advance(time.Second)
	result, err = f.manager.Add(ctx, ids...)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if f.remote.Calls() != 2 || result.Stored != 2 {
		t.Fatalf("expected refresh at TTL boundary, calls=%d result=%+v", f.remote.Calls(), result)
	}
}

func TestAddOnlyFetchesStaleIDs(t *testing.T) {
	f := newFixture(t, testsupport.WithTTL(time.Hour))
	ctx := context.Background()
	testsupport.Seed(t, f.store, f.clock.Now(), testsupport.Catalog()[0])

	if _, err := f.manager.Add(ctx, "tt0111161", "tt0068646"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	want := [][]string{{"tt0068646"}}
	if got := f.remote.Requests(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected only the stale id to be fetched, got %v", got)
	}
}

func TestAddNormalizesIDs(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.Add(context.Background(), " tt0111161 ", "tt0111161", "", "  ")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Requested != 1 {
		t.Fatalf("expected 1 requested id, got %d", result.Requested)
	}
	want := [][]string{{"tt0111161"}}
	if got := f.remote.Requests(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected requests %v", got)
	}
}

func TestAddEmptyIsNoop(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.Add(context.Background())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Requested != 0 || f.remote.Calls() != 0 {
		t.Fatalf("expected no work, got %+v with %d calls", result, f.remote.Calls())
	}
}

func TestAddCountsUnknownIDsAsMissing(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.Add(context.Background(), "tt0111161", "tt4040404")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if result.Stored != 1 || result.Missing != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAddSkipsMalformedBatch(t *testing.T) {
	f := newFixture(t, testsupport.WithBatchSize(2))
	ctx := context.Background()
	f.remote.MalformedFor("tt0111161")

	result, err := f.manager.Add(ctx, "tt0068646", "tt0111161", "tt0118799", "tt0211915")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected one failed batch, got %+v", result.Failures)
	}
	failure := result.Failures[0]
	if failure.Batch != 1 || !reflect.DeepEqual(failure.IDs, []string{"tt0068646", "tt0111161"}) {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if !errors.Is(failure.Err, services.ErrMalformed) {
		t.Fatalf("expected malformed error, got %v", failure.Err)
	}
	if result.Stored != 2 {
		t.Fatalf("expected sibling batch stored, got %+v", result)
	}

	n, err := f.store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 stored titles, got %d", n)
	}
}

func TestAddReportsTransientFailureAfterRetries(t *testing.T) {
	f := newFixture(t, testsupport.WithBatchSize(1))
	// MaxRetries is 2 in test configs, so both attempts of the first batch fail.
	f.remote.FailNext(2, http.StatusServiceUnavailable)

	result, err := f.manager.Add(context.Background(), "tt0068646", "tt0111161")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(result.Failures) != 1 || !errors.Is(result.Failures[0].Err, services.ErrTransient) {
		t.Fatalf("expected one transient failure, got %+v", result.Failures)
	}
	if result.Failures[0].Message == "" {
		t.Fatal("expected failure message")
	}
	if result.Stored != 1 {
		t.Fatalf("expected second batch stored, got %+v", result)
	}
	if f.remote.Calls() != 3 {
		t.Fatalf("expected 3 remote calls, got %d", f.remote.Calls())
	}
}

func TestAddRetriesTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.FailNext(1, http.StatusTooManyRequests)

	result, err := f.manager.Add(context.Background(), "tt0111161")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(result.Failures) != 0 || result.Stored != 1 {
		t.Fatalf("expected retry to succeed, got %+v", result)
	}
}

func TestAddCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Add(ctx, "tt0111161")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.remote.Calls() != 0 {
		t.Fatalf("expected no remote calls, got %d", f.remote.Calls())
	}
}

func TestAddAsync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	future := f.manager.AddAsync(ctx, "tt0111161", "tt0068646")
	result, err := future.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if result.Stored != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

// closingFetcher serves catalog titles and closes the store once its call
// count reaches closeOn, so the write that follows fails.
type closingFetcher struct {
	store   *store.Store
	closeOn int
	calls   int
}

func (c *closingFetcher) BatchGet(_ context.Context, ids []string) ([]fetcher.RemoteTitle, error) {
	c.calls++
	if c.calls == c.closeOn {
		c.store.Close()
	}
	byID := make(map[string]testsupport.Title)
	for _, title := range testsupport.Catalog() {
		byID[title.ID] = title
	}
	var out []fetcher.RemoteTitle
	for _, id := range ids {
		if title, ok := byID[id]; ok {
			out = append(out, fetcher.RemoteTitle{ID: id, Type: "movie", Raw: title.JSON()})
		}
	}
	return out, nil
}

func TestAddStorageFailureKeepsEarlierBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBatchSize(1))
	st := testsupport.MustOpenStore(t, cfg)
	remote := &closingFetcher{store: st, closeOn: 2}
	mgr, err := cache.New(cfg, st, remote)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(mgr.Close)

	result, err := mgr.Add(context.Background(), "tt0068646", "tt0111161")
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if result.Stored != 1 || result.Fetched != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	reopened, err := store.OpenPath(cfg.Paths.Database)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer reopened.Close()
	n, err := reopened.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the first batch to stay committed, got %d titles", n)
	}
	rec, err := reopened.Get(context.Background(), "tt0068646")
	if err != nil || rec == nil {
		t.Fatalf("expected tt0068646 stored, got %v, %v", rec, err)
	}
}
