package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
)

// Remote is a fake title metadata service serving /titles:batchGet.
type Remote struct {
	URL string

	mu        sync.Mutex
	titles    map[string]Title
	requests  [][]string
	failures  int
	status    int
	malformed map[string]bool
}

// NewRemote starts a fake remote holding titles and registers cleanup.
func NewRemote(t testing.TB, titles ...Title) *Remote {
	t.Helper()

	r := &Remote{titles: make(map[string]Title), malformed: make(map[string]bool)}
	for _, title := range titles {
		r.titles[title.ID] = title
	}
	server := httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(server.Close)
	r.URL = server.URL
	return r
}

// FailNext makes the next n requests answer with status.
func (r *Remote) FailNext(n, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = n
	r.status = status
}

// MalformedFor makes any request that includes id answer without a titles key.
func (r *Remote) MalformedFor(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed[id] = true
}

// Put adds or replaces a title.
func (r *Remote) Put(title Title) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles[title.ID] = title
}

// Requests returns the id lists of every request received so far.
func (r *Remote) Requests() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.requests))
	for i, ids := range r.requests {
		out[i] = slices.Clone(ids)
	}
	return out
}

// Calls returns the number of requests received.
func (r *Remote) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *Remote) serve(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/titles:batchGet" {
		http.NotFound(w, req)
		return
	}
	ids := req.URL.Query()["titleIds"]

	r.mu.Lock()
	r.requests = append(r.requests, ids)
	if r.failures > 0 {
		r.failures--
		status := r.status
		r.mu.Unlock()
		http.Error(w, strings.ToLower(http.StatusText(status)), status)
		return
	}
	for _, id := range ids {
		if r.malformed[id] {
			r.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error":"upstream hiccup"}`))
			return
		}
	}
	payload := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if title, ok := r.titles[id]; ok {
			payload = append(payload, title.JSON())
		}
	}
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"titles": payload})
}
