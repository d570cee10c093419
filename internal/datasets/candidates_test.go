package datasets_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"titlecache/internal/datasets"
	"titlecache/internal/testsupport"
)

func writeDatasets(t *testing.T, dir string, basics, ratings [][]string) {
	t.Helper()
	testsupport.WriteFile(t, filepath.Join(dir, datasets.TitleBasics), testsupport.GzipTSV(t, basics...))
	testsupport.WriteFile(t, filepath.Join(dir, datasets.TitleRatings), testsupport.GzipTSV(t, ratings...))
}

func TestCandidateIDs(t *testing.T) {
	dir := t.TempDir()
	writeDatasets(t, dir,
		[][]string{
			{"tconst", "titleType", "primaryTitle", "startYear"},
			{"tt0000003", "movie", "Three", "1999"},
			{"tt0000001", "movie", "One", `\N`},
			{"tt0000002", "tvSeries", "Two", "2001"},
			{`\N`, "movie", "Broken", "2000"},
			{"tt0000004", "movie", "Unrated", "2002"},
			{"tt0000005", "short", "Five", "2003"},
		},
		[][]string{
			{"tconst", "averageRating", "numVotes"},
			{"tt0000001", "7.1", "10"},
			{"tt0000002", "8.0", "20"},
			{"tt0000003", "6.5", "30"},
			{"tt0000005", "5.0", "5"},
			{"tt0000003", "6.5", "30"},
			{"tt9999999", "9.9", "1"},
		},
	)
	ctx := context.Background()

	got, err := datasets.CandidateIDs(ctx, dir, []string{"movie"})
	if err != nil {
		t.Fatalf("CandidateIDs: %v", err)
	}
	if want := []string{"tt0000001", "tt0000003"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, err = datasets.CandidateIDs(ctx, dir, []string{"movie", "short"})
	if err != nil {
		t.Fatalf("CandidateIDs: %v", err)
	}
	if want := []string{"tt0000001", "tt0000003", "tt0000005"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, err = datasets.CandidateIDs(ctx, dir, nil)
	if err != nil {
		t.Fatalf("CandidateIDs: %v", err)
	}
	if want := []string{"tt0000001", "tt0000002", "tt0000003", "tt0000005"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCandidateIDsErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := datasets.CandidateIDs(ctx, t.TempDir(), nil); err == nil {
		t.Fatal("expected error for missing files")
	}

	dir := t.TempDir()
	writeDatasets(t, dir,
		[][]string{{"id", "kind"}, {"tt1", "movie"}},
		[][]string{{"tconst"}, {"tt1"}},
	)
	if _, err := datasets.CandidateIDs(ctx, dir, nil); err == nil {
		t.Fatal("expected error for missing header column")
	}

	dir = t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, datasets.TitleBasics), []byte("not gzip"))
	if _, err := datasets.CandidateIDs(ctx, dir, nil); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}
