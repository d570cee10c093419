package api

import (
	"time"

	"titlecache/internal/cache"
	"titlecache/internal/pathquery"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// StatusResponse summarizes the cache.
type StatusResponse struct {
	Titles       int            `json:"titles"`
	Oldest       string         `json:"oldest,omitempty"`
	Newest       string         `json:"newest,omitempty"`
	TTLSeconds   float64        `json:"ttlSeconds"`
	DatabasePath string         `json:"databasePath"`
	Snapshot     SnapshotStatus `json:"snapshot"`
}

// SnapshotStatus reports facet sizes of the current snapshot.
type SnapshotStatus struct {
	Entries   int    `json:"entries"`
	Titles    int    `json:"titles"`
	Genres    int    `json:"genres"`
	Countries int    `json:"countries"`
	LoadedAt  string `json:"loadedAt,omitempty"`
}

// AddRequest lists ids to refresh.
type AddRequest struct {
	IDs []string `json:"ids"`
}

// Predicate is a path/value pair as sent by clients. Value follows
// pathquery.ValueOf: null skips, a string is a substring, a number an exact
// match and a two-number array an inclusive range.
type Predicate struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// QueryRequest selects titles by predicates, joined with AND unless Union is set.
type QueryRequest struct {
	Predicates []Predicate `json:"predicates"`
	Union      bool        `json:"union"`
}

// QueryResponse wraps matching titles.
type QueryResponse struct {
	Titles []cache.Title `json:"titles"`
}

// ValuesResponse wraps autocomplete suggestions.
type ValuesResponse struct {
	Values []string `json:"values"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// FromStats converts cache statistics into the status payload.
func FromStats(stats cache.Stats) StatusResponse {
	return StatusResponse{
		Titles:       stats.Count,
		Oldest:       formatTime(stats.Oldest),
		Newest:       formatTime(stats.Newest),
		TTLSeconds:   stats.TTL.Seconds(),
		DatabasePath: stats.Path,
		Snapshot: SnapshotStatus{
			Entries:   stats.Snapshot.Entries,
			Titles:    stats.Snapshot.Titles,
			Genres:    stats.Snapshot.Genres,
			Countries: stats.Snapshot.Countries,
			LoadedAt:  formatTime(stats.Snapshot.LoadedAt),
		},
	}
}

// Combinator returns the join requested by the client.
func (q QueryRequest) Combinator() pathquery.Combinator {
	if q.Union {
		return pathquery.Any
	}
	return pathquery.All
}

// ToPredicates converts the wire predicates.
func (q QueryRequest) ToPredicates() []pathquery.Predicate {
	out := make([]pathquery.Predicate, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		out = append(out, pathquery.Where(p.Path, p.Value))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
