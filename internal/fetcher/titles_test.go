package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"titlecache/internal/fetcher"
	"titlecache/internal/services"
	"titlecache/internal/testsupport"
)

func newTitlesClient(t *testing.T, baseURL string) *fetcher.TitlesClient {
	t.Helper()
	client := fetcher.New(
		fetcher.WithRetryMaxAttempts(2),
		fetcher.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	titles, err := fetcher.NewTitlesClient(baseURL, client)
	if err != nil {
		t.Fatalf("NewTitlesClient: %v", err)
	}
	return titles
}

func TestBatchGet(t *testing.T) {
	catalog := testsupport.Catalog()
	remote := testsupport.NewRemote(t, catalog...)
	client := newTitlesClient(t, remote.URL+"/")

	got, err := client.BatchGet(context.Background(), []string{"tt0111161", "tt0903747", "tt404"})
	if err != nil {
		t.Fatalf("BatchGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(got))
	}
	if got[0].ID != "tt0111161" || got[0].Type != "movie" {
		t.Fatalf("unexpected first title %+v", got[0])
	}
	if got[1].Type != "tvSeries" {
		t.Fatalf("expected raw type passed through, got %q", got[1].Type)
	}
	if !reflect.DeepEqual(remote.Requests(), [][]string{{"tt0111161", "tt0903747", "tt404"}}) {
		t.Fatalf("unexpected requests %v", remote.Requests())
	}
}

func TestBatchGetURL(t *testing.T) {
	client := newTitlesClient(t, "https://api.imdbapi.dev")
	got := client.BatchGetURL([]string{"tt1", "tt2"})
	want := "https://api.imdbapi.dev/titles:batchGet?titleIds=tt1&titleIds=tt2"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestBatchGetMissingTitlesIsMalformed(t *testing.T) {
	remote := testsupport.NewRemote(t)
	remote.MalformedFor("tt1")
	client := newTitlesClient(t, remote.URL)

	_, err := client.BatchGet(context.Background(), []string{"tt1"})
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestBatchGetTitlesNotArrayIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"titles":{"id":"tt1"}}`))
	}))
	defer server.Close()
	client := newTitlesClient(t, server.URL)

	if _, err := client.BatchGet(context.Background(), []string{"tt1"}); !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestBatchGetRejectsBadBatchSizes(t *testing.T) {
	client := newTitlesClient(t, "http://127.0.0.1:1")
	for _, ids := range [][]string{nil, {"1", "2", "3", "4", "5", "6"}} {
		if _, err := client.BatchGet(context.Background(), ids); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("BatchGet(%d ids) error = %v, want ErrValidation", len(ids), err)
		}
	}
}

func TestBatchGetTransientFailure(t *testing.T) {
	remote := testsupport.NewRemote(t, testsupport.Catalog()...)
	remote.FailNext(2, http.StatusTooManyRequests)
	client := newTitlesClient(t, remote.URL)

	_, err := client.BatchGet(context.Background(), []string{"tt0111161"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient after exhausting retries, got %v", err)
	}
	if remote.Calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", remote.Calls())
	}
}

func TestNewTitlesClientValidates(t *testing.T) {
	if _, err := fetcher.NewTitlesClient(" ", fetcher.New()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := fetcher.NewTitlesClient("http://x", nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
