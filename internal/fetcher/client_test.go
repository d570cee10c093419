package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"titlecache/internal/services"
)

func recordingSleeper(slept *[]time.Duration) Option {
	return WithSleeper(func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	})
}

func TestFetchJSONRetriesWithExponentialBackoff(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1, 2:
			w.WriteHeader(http.StatusTooManyRequests)
		case 3:
			w.WriteHeader(http.StatusBadGateway)
		case 4:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer server.Close()

	var slept []time.Duration
	client := New(
		WithHTTPClient(server.Client()),
		WithRetryMaxAttempts(5),
		WithRetryBackoff(2*time.Second, 0),
		recordingSleeper(&slept),
	)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.FetchJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("FetchJSON returned error: %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded body")
	}
	if calls.Load() != 5 {
		t.Fatalf("expected 5 calls, got %d", calls.Load())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if !reflect.DeepEqual(slept, want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
}

func TestFetchJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	var slept []time.Duration
	client := New(WithHTTPClient(server.Client()), WithRetryMaxAttempts(3), WithRetryBackoff(time.Second, 0), recordingSleeper(&slept))

	err := client.FetchJSON(context.Background(), server.URL, &map[string]any{})
	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if fetchErr.Attempts != 3 || fetchErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected error detail: %+v", fetchErr)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if len(slept) != 2 {
		t.Fatalf("expected no sleep after the final attempt, got %v", slept)
	}
}

func TestFetchJSONMalformedBodyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	client := New(WithHTTPClient(server.Client()), WithSleeper(func(context.Context, time.Duration) error { return nil }))
	err := client.FetchJSON(context.Background(), server.URL, &map[string]any{})
	if !errors.Is(err, services.ErrMalformed) {
		t.Fatalf("expected malformed classification, got %v", err)
	}
	if errors.Is(err, services.ErrTransient) {
		t.Fatal("malformed responses must not read as transient")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestFetchJSONCancelDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := New(WithHTTPClient(server.Client()), WithRetryBackoff(time.Hour, 0))
	done := make(chan error, 1)
	go func() {
		done <- client.FetchJSON(ctx, server.URL, &map[string]any{})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("backoff sleep was not interrupted")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	client := New(WithRetryBackoff(2*time.Second, 5*time.Second))
	got := []time.Duration{client.backoffDelay(1), client.backoffDelay(2), client.backoffDelay(3), client.backoffDelay(10)}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
}

func TestDownloadRetriesAndStreams(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	target := filepath.Join(t.TempDir(), "file.bin")
	client := New(WithHTTPClient(server.Client()), WithSleeper(func(context.Context, time.Duration) error { return nil }))
	err := client.Download(context.Background(), server.URL, func() (io.WriteCloser, error) {
		return os.Create(target)
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
}
