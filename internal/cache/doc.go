// Package cache keeps a local copy of remote title metadata fresh and
// answers structured queries against it.
//
// Manager is the entry point. Add refreshes identifiers whose cached copy is
// missing or older than the TTL, fetching them from the remote service in
// sub-batches and upserting each sub-batch in one transaction. Query, Count
// and Autocomplete read from the store. Reload rebuilds the facet Snapshot
// (titles, genres, countries) that suggestion lookups are served from.
//
// Store access runs on a single-worker lane and remote fetches on a small
// pool, so any number of goroutines may call into one Manager.
package cache
