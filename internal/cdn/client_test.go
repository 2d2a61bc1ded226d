package cdn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sodareplay/internal/services"
	"sodareplay/internal/testsupport"
)

func TestFetchSubstitutesID(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("id")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("asset-bytes"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/v1/asset/?id={id}", WithUserAgent("sodareplay/test"))
	data, err := client.Fetch(context.Background(), "1818567076")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(data) != "asset-bytes" {
		t.Fatalf("body = %q", data)
	}
	if gotQuery != "1818567076" || gotUA != "sodareplay/test" {
		t.Fatalf("query = %q ua = %q", gotQuery, gotUA)
	}
}

func TestFetchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/{id}").Fetch(context.Background(), "1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL+"/{id}", WithTimeout(50*time.Millisecond))
	_, err := client.Fetch(context.Background(), "1")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/{id}", WithMaxBytes(16)).Fetch(context.Background(), "1")
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.CDN.URLTemplate = "https://cdn.example/{id}.bin"
	client := NewFromConfig(cfg)
	if got := client.URL("42"); got != "https://cdn.example/42.bin" {
		t.Fatalf("URL = %s", got)
	}
	if client.timeout != cfg.FetchTimeout() {
		t.Fatalf("timeout = %s", client.timeout)
	}
}
