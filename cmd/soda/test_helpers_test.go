package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sodareplay/internal/config"
	"sodareplay/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	cdn        *testsupport.FakeCDN
	configPath string
}

// setupCLITestEnv writes a config whose API address has nothing listening, so
// commands fall back to local access.
func setupCLITestEnv(t *testing.T, failing ...string) *cliTestEnv {
	t.Helper()
	cdn := testsupport.NewFakeCDN(t, failing...)
	cfg := testsupport.NewConfig(t, testsupport.WithCDN(cdn.Template()))
	cfg.Paths.APIBind = unusedAddress(t)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, cdn: cdn, configPath: configPath}
}

func unusedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
export_dir = %q
state_dir = %q
log_dir = %q
api_bind = %q

[cdn]
url_template = %q
timeout_seconds = %d

[resolver]
workers = %d

[logging]
level = "error"
`,
		cfg.Paths.ExportDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.CDN.URLTemplate,
		cfg.CDN.TimeoutSeconds,
		cfg.Resolver.Workers,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
