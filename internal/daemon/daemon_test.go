package daemon_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"sodareplay/internal/api"
	"sodareplay/internal/daemon"
	"sodareplay/internal/ledger"
	"sodareplay/internal/logging"
	"sodareplay/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cdn := testsupport.NewFakeCDN(t)
	cfg := testsupport.NewConfig(t, testsupport.WithCDN(cdn.Template()))
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	d, err := daemon.New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LedgerPath != cfg.LedgerPath() || len(status.Checks) == 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	client := api.NewClient(d.Addr())
	remote, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("client status: %v", err)
	}
	if !remote.Running {
		t.Fatal("expected remote status to report running")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := ledger.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ledger.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	a, err := daemon.New(cfg, first, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	b, err := daemon.New(cfg, second, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	err = b.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}
}

func TestDaemonSubmitThroughClient(t *testing.T) {
	cdn := testsupport.NewFakeCDN(t)
	cfg := testsupport.NewConfig(t, testsupport.WithCDN(cdn.Template()), testsupport.WithAPIToken("tok"))
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := api.NewClient(d.Addr()).Status(ctx); err == nil {
		t.Fatal("expected unauthorized without token")
	} else if apiErr, ok := err.(*api.Error); !ok || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	client := api.NewClient(d.Addr(), api.WithToken("tok"))
	resp, err := client.SubmitManifest(ctx, []byte(`{"models":["11"],"sounds":["12"]}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Status != api.StatusOK || resp.Summary.Fetched != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	runs, err := client.Runs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != resp.RunID || runs[0].Source != ledger.SourceAPI {
		t.Fatalf("unexpected runs %+v", runs)
	}
}
