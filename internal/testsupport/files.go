package testsupport

import (
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// GzipTSV renders rows as a gzip-compressed, tab-separated file.
func GzipTSV(t testing.TB, rows ...[]string) []byte {
	t.Helper()

	var buf strings.Builder
	zw := gzip.NewWriter(&buf)
	for _, row := range rows {
		if _, err := zw.Write([]byte(strings.Join(row, "\t") + "\n")); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return []byte(buf.String())
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// FileServer serves fixed file contents by name and counts downloads.
type FileServer struct {
	URL string

	mu        sync.Mutex
	files     map[string][]byte
	downloads map[string]int
}

// NewFileServer starts a static file server and registers cleanup.
func NewFileServer(t testing.TB, files map[string][]byte) *FileServer {
	t.Helper()

	fs := &FileServer{files: files, downloads: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		fs.mu.Lock()
		data, ok := fs.files[name]
		if ok {
			fs.downloads[name]++
		}
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	fs.URL = server.URL
	return fs
}

// Downloads reports how many times name was served.
func (fs *FileServer) Downloads(name string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.downloads[name]
}
