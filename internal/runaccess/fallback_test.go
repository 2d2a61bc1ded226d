package runaccess

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sodareplay/internal/api"
	"sodareplay/internal/ledger"
	"sodareplay/internal/testsupport"
)

func TestOpenWithFallbackPrefersDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status":
			_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true})
		case "/api/runs":
			_ = json.NewEncoder(w).Encode(api.RunListResponse{Runs: []api.Run{{ID: "remote"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	opened := false
	session, err := OpenWithFallback(context.Background(), api.NewClient(srv.URL), func() (*api.RunService, func() error, error) {
		opened = true
		return nil, nil, nil
	})
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if !session.Remote || opened {
		t.Fatal("expected daemon-backed session")
	}
	runs, err := session.Access.List(context.Background(), 0)
	if err != nil || len(runs) != 1 || runs[0].ID != "remote" {
		t.Fatalf("List = %+v, %v", runs, err)
	}
}

func TestOpenWithFallbackUsesLedger(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	unreachable := api.NewClient(srv.URL)
	srv.Close()

	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	session, err := OpenWithFallback(context.Background(), unreachable, func() (*api.RunService, func() error, error) {
		return api.NewRunService(store, nil), store.Close, nil
	})
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()
	if session.Remote {
		t.Fatal("expected local session")
	}
	runs, err := session.Access.List(context.Background(), 10)
	if err != nil || len(runs) != 0 {
		t.Fatalf("List = %+v, %v", runs, err)
	}
}
