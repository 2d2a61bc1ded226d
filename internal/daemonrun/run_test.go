package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sodareplay/internal/api"
	"sodareplay/internal/testsupport"
)

func TestRunServesUntilCancelled(t *testing.T) {
	cdn := testsupport.NewFakeCDN(t)
	cfg := testsupport.NewConfig(t, testsupport.WithCDN(cdn.Template()))
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{Diagnostic: true, Ready: func(addr string) { ready <- addr }})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("Run exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not become ready")
	}

	status, err := api.NewClient(addr).Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	pid, err := ReadPID(cfg)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "sodareplay.log")); err != nil {
		t.Fatalf("log pointer missing: %v", err)
	}
	debugLogs, _ := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "debug", "sodareplay-*.log"))
	if len(debugLogs) != 1 {
		t.Fatalf("expected one diagnostic log, got %v", debugLogs)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if _, err := ReadPID(cfg); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, got %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
