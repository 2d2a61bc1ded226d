package testsupport

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// WriteFile creates path (and parents) with the given content.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// FakeCDN serves "asset-<id>" for every ID and counts requests. IDs listed in
// Fail answer 500.
type FakeCDN struct {
	Server *httptest.Server

	mu   sync.Mutex
	hits map[string]int
	fail map[string]bool
}

// NewFakeCDN starts a CDN stub and registers cleanup.
func NewFakeCDN(t testing.TB, failing ...string) *FakeCDN {
	t.Helper()
	f := &FakeCDN{hits: map[string]int{}, fail: map[string]bool{}}
	for _, id := range failing {
		f.fail[id] = true
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/asset/")
		f.mu.Lock()
		f.hits[id]++
		failing := f.fail[id]
		f.mu.Unlock()
		if failing {
			http.Error(w, "upstream error", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("asset-" + id))
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// Template returns the URL template for this stub.
func (f *FakeCDN) Template() string { return f.Server.URL + "/asset/{id}" }

// Heal stops failing the given IDs.
func (f *FakeCDN) Heal(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.fail, id)
	}
}

// Hits returns how many requests id received.
func (f *FakeCDN) Hits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[id]
}

// Total returns the number of requests served.
func (f *FakeCDN) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}
