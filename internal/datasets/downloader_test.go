package datasets_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"titlecache/internal/datasets"
	"titlecache/internal/fetcher"
	"titlecache/internal/services"
	"titlecache/internal/testsupport"
)

func datasetFiles(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		datasets.TitleBasics: testsupport.GzipTSV(t,
			[]string{"tconst", "titleType", "primaryTitle"},
			[]string{"tt0000001", "movie", "One"},
		),
		datasets.TitleRatings: testsupport.GzipTSV(t,
			[]string{"tconst", "averageRating", "numVotes"},
			[]string{"tt0000001", "7.0", "10"},
		),
	}
}

func testClient() *fetcher.Client {
	return fetcher.New(
		fetcher.WithRetryMaxAttempts(2),
		fetcher.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
}

func TestEnsureDownloadsMissingFiles(t *testing.T) {
	files := datasetFiles(t)
	server := testsupport.NewFileServer(t, files)
	cfg := testsupport.NewConfig(t, testsupport.WithDatasets(server.URL))
	d := datasets.NewFromConfig(cfg, nil)
	ctx := context.Background()

	got, err := d.Ensure(ctx, datasets.TitleBasics, datasets.TitleRatings)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if want := []bool{true, true}; !reflect.DeepEqual(got, want) {
		t.Fatalf("downloaded = %v, want %v", got, want)
	}
	for name, data := range files {
		onDisk, err := os.ReadFile(d.Path(name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !reflect.DeepEqual(onDisk, data) {
			t.Fatalf("%s content mismatch", name)
		}
	}
	leftovers, _ := filepath.Glob(filepath.Join(d.Dir(), "*.part"))
	if len(leftovers) != 0 {
		t.Fatalf("expected no partial files, got %v", leftovers)
	}

	got, err = d.Ensure(ctx, datasets.TitleBasics, datasets.TitleRatings)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if want := []bool{false, false}; !reflect.DeepEqual(got, want) {
		t.Fatalf("fresh files should not be downloaded again, got %v", got)
	}
	if n := server.Downloads(datasets.TitleBasics); n != 1 {
		t.Fatalf("expected 1 download, got %d", n)
	}
}

func TestEnsureRefreshesOldFiles(t *testing.T) {
	server := testsupport.NewFileServer(t, datasetFiles(t))
	cfg := testsupport.NewConfig(t, testsupport.WithDatasets(server.URL))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.DatasetsDir, datasets.TitleBasics), []byte("old"))

	later := func() time.Time { return time.Now().Add(cfg.DatasetMaxAge() + time.Hour) }
	d := datasets.New(cfg, testClient(), datasets.WithClock(later))

	got, err := d.Ensure(context.Background(), datasets.TitleBasics)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !got[0] {
		t.Fatal("expected stale file to be downloaded")
	}
	data, err := os.ReadFile(d.Path(datasets.TitleBasics))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) == "old" {
		t.Fatal("file was not replaced")
	}
}

func TestEnsureRejectsUnknownFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := datasets.New(cfg, testClient())

	_, err := d.Ensure(context.Background(), datasets.TitleBasics, "title.secret.tsv.gz")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnsureFailureKeepsPreviousCopy(t *testing.T) {
	server := testsupport.NewFileServer(t, map[string][]byte{})
	cfg := testsupport.NewConfig(t, testsupport.WithDatasets(server.URL))
	target := filepath.Join(cfg.Paths.DatasetsDir, datasets.TitleRatings)
	testsupport.WriteFile(t, target, []byte("previous"))

	later := func() time.Time { return time.Now().Add(cfg.DatasetMaxAge() + time.Hour) }
	d := datasets.New(cfg, testClient(), datasets.WithClock(later))

	_, err := d.Ensure(context.Background(), datasets.TitleRatings)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "previous" {
		t.Fatalf("previous copy was modified: %q", data)
	}
	if _, err := os.Stat(target + ".part"); !os.IsNotExist(err) {
		t.Fatalf("expected partial file removed, stat err = %v", err)
	}
}
