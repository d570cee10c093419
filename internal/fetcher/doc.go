// Package fetcher performs HTTP GETs against rate-limited services with
// bounded retries and exponential backoff.
//
// Client handles the transport concerns (per-attempt timeout, retry on
// transport errors and non-2xx answers including 429, interruptible backoff)
// and TitlesClient layers the title metadata batchGet endpoint on top.
package fetcher
