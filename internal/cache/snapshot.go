package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"

	"titlecache/internal/logging"
	"titlecache/internal/store"
	"titlecache/internal/textutil"
	"titlecache/internal/worker"
)

// Facet names one of the in-memory suggestion lists.
type Facet string

const (
	FacetTitles    Facet = "titles"
	FacetGenres    Facet = "genres"
	FacetCountries Facet = "countries"
)

// ParseFacet accepts a facet name in any case.
func ParseFacet(name string) (Facet, error) {
	switch f := Facet(strings.ToLower(strings.TrimSpace(name))); f {
	case FacetTitles, FacetGenres, FacetCountries:
		return f, nil
	default:
		return "", fmt.Errorf("unknown facet %q (want titles, genres or countries)", name)
	}
}

// Snapshot is an immutable view of facet values taken from the store.
type Snapshot struct {
	Entries   int
	Titles    []string
	Genres    []string
	Countries []string
	LoadedAt  time.Time
}

// SnapshotCounts summarizes a snapshot for status output.
type SnapshotCounts struct {
	Entries   int       `json:"entries"`
	Titles    int       `json:"titles"`
	Genres    int       `json:"genres"`
	Countries int       `json:"countries"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// Counts returns the size of each facet.
func (s *Snapshot) Counts() SnapshotCounts {
	return SnapshotCounts{
		Entries:   s.Entries,
		Titles:    len(s.Titles),
		Genres:    len(s.Genres),
		Countries: len(s.Countries),
		LoadedAt:  s.LoadedAt,
	}
}

// Values returns the sorted values of f.
func (s *Snapshot) Values(f Facet) []string {
	switch f {
	case FacetTitles:
		return s.Titles
	case FacetGenres:
		return s.Genres
	case FacetCountries:
		return s.Countries
	default:
		return nil
	}
}

// Suggest returns up to n values of f containing query, ignoring case.
func (s *Snapshot) Suggest(f Facet, query string, n int) []string {
	if n <= 0 {
		n = DefaultSuggestions
	}
	var out []string
	for _, v := range s.Values(f) {
		if textutil.ContainsFold(v, query) {
			out = append(out, v)
			if len(out) == n {
				break
			}
		}
	}
	return out
}

// FacetDiff pairs sizes before and after a reload.
type FacetDiff struct {
	Before int `json:"before"`
	After  int `json:"after"`
}

// SnapshotDiff reports how a reload changed each facet.
type SnapshotDiff struct {
	Entries   FacetDiff `json:"entries"`
	Titles    FacetDiff `json:"titles"`
	Genres    FacetDiff `json:"genres"`
	Countries FacetDiff `json:"countries"`
}

func (d SnapshotDiff) String() string {
	return fmt.Sprintf("entries %d -> %d, titles %d -> %d, genres %d -> %d, countries %d -> %d",
		d.Entries.Before, d.Entries.After,
		d.Titles.Before, d.Titles.After,
		d.Genres.Before, d.Genres.After,
		d.Countries.Before, d.Countries.After)
}

func diffSnapshots(before, after *Snapshot) SnapshotDiff {
	return SnapshotDiff{
		Entries:   FacetDiff{before.Entries, after.Entries},
		Titles:    FacetDiff{len(before.Titles), len(after.Titles)},
		Genres:    FacetDiff{len(before.Genres), len(after.Genres)},
		Countries: FacetDiff{len(before.Countries), len(after.Countries)},
	}
}

// Snapshot returns the current facet view. Before the first Reload it is empty.
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Reload rebuilds the facet view from every stored title and swaps it in.
// Readers holding the previous snapshot keep a consistent view.
func (m *Manager) Reload(ctx context.Context) (SnapshotDiff, error) {
	next, err := worker.Do(ctx, m.storeLane, m.buildSnapshot)
	if err != nil {
		return SnapshotDiff{}, m.storageError("reload snapshot", err)
	}
	prev := m.snapshot.Swap(next)
	diff := diffSnapshots(prev, next)
	m.logger.Info("snapshot reloaded",
		logging.String(logging.FieldEventType, "snapshot_reloaded"),
		logging.String("diff", diff.String()),
	)
	return diff, nil
}

func (m *Manager) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	var titles, genres, countries []string
	entries := 0
	err := m.store.Each(ctx, func(rec store.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			m.logger.Debug("skipping undecodable title", logging.String("id", rec.ID), logging.Error(err))
			return nil
		}
		entries++
		titles = appendStrings(titles, m.facets.titles, doc, nil)
		genres = appendStrings(genres, m.facets.genres, doc, nil)
		countries = appendStrings(countries, m.facets.countries, doc, textutil.StripParenthetical)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Entries:   entries,
		Titles:    textutil.SortedUnique(titles),
		Genres:    textutil.SortedUnique(genres),
		Countries: textutil.SortedUnique(countries),
		LoadedAt:  m.now(),
	}, nil
}

// appendStrings adds the string results of expr on doc; other types are ignored.
func appendStrings(dst []string, expr jp.Expr, doc any, post func(string) string) []string {
	for _, v := range expr.Get(doc) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if post != nil {
			s = post(s)
		}
		if s = strings.TrimSpace(s); s != "" {
			dst = append(dst, s)
		}
	}
	return dst
}
