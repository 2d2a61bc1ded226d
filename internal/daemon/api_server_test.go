package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"sodareplay/internal/api"
	"sodareplay/internal/config"
	"sodareplay/internal/ledger"
	"sodareplay/internal/testsupport"
)

const testCapture = `{
  "map": [{"meshId": "rbxassetid://21", "pos": [0, 0, 0], "rot": [0, 90, 0]}],
  "frames": [
    {"players": [{"name": "alice", "pos": [0, 0, 0], "rot": [0, 0, 0]}]},
    {"players": [{"name": "alice", "pos": [1, 0, 0], "rot": [0, 0, 0]}],
     "guiState": [{"path": "Hud.Score", "text": "3", "visible": true}]}
  ]
}`

type harness struct {
	cfg    *config.Config
	cdn    *testsupport.FakeCDN
	daemon *Daemon
	server *httptest.Server
}

func newHarness(t *testing.T, failing ...string) *harness {
	t.Helper()
	cdn := testsupport.NewFakeCDN(t, failing...)
	cfg := testsupport.NewConfig(t, testsupport.WithCDN(cdn.Template()))
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	d, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	srv := httptest.NewServer(newAPIServer(cfg, d, nil).server.Handler)
	t.Cleanup(srv.Close)
	return &harness{cfg: cfg, cdn: cdn, daemon: d, server: srv}
}

func (h *harness) do(t *testing.T, method, path, body string, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp
}

func TestAssetsEndpointOK(t *testing.T) {
	h := newHarness(t)

	var resp api.AssetsResponse
	r := h.do(t, http.MethodPost, "/assets", `{"models":["1"],"textures":["rbxassetid://2"]}`, &resp)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", r.StatusCode)
	}
	if resp.Status != api.StatusOK || resp.Summary.Fetched != 2 || len(resp.Errors) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if r.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}

	var again api.AssetsResponse
	h.do(t, http.MethodPost, "/assets", `{"models":["1"]}`, &again)
	if again.Summary.Skipped != 1 || h.cdn.Hits("1") != 1 {
		t.Fatalf("expected skip on resubmission, got %+v (hits %d)", again.Summary, h.cdn.Hits("1"))
	}
}

func TestAssetsEndpointPartialAndRetry(t *testing.T) {
	h := newHarness(t, "3")

	var resp api.AssetsResponse
	r := h.do(t, http.MethodPost, "/assets", `{"models":["1"],"sounds":["3"],"guiImages":["nodigits"]}`, &resp)
	if r.StatusCode != http.StatusMultiStatus {
		t.Fatalf("status = %d", r.StatusCode)
	}
	if resp.Status != api.StatusPartial || len(resp.Errors) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	outcomes := map[string]string{}
	for _, e := range resp.Errors {
		outcomes[e.Section] = e.Outcome
	}
	if outcomes["sounds"] != "failed" || outcomes["guiImages"] != "invalid" {
		t.Fatalf("errors = %+v", resp.Errors)
	}

	h.cdn.Heal("3")
	var retry api.AssetsResponse
	r = h.do(t, http.MethodPost, "/api/runs/"+resp.RunID+"/retry", "", &retry)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d", r.StatusCode)
	}
	if retry.Summary.Total != 1 || retry.Summary.Fetched != 1 {
		t.Fatalf("retry summary = %+v", retry.Summary)
	}

	var detail api.RunResponse
	h.do(t, http.MethodGet, "/api/runs/"+retry.RunID, "", &detail)
	if detail.Run.ParentID != resp.RunID || detail.Run.Source != ledger.SourceRetry {
		t.Fatalf("retry run = %+v", detail.Run)
	}

	r = h.do(t, http.MethodPost, "/api/runs/"+retry.RunID+"/retry", "", nil)
	if r.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for clean run, got %d", r.StatusCode)
	}

	var list api.RunListResponse
	h.do(t, http.MethodGet, "/api/runs?limit=1", "", &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != retry.RunID {
		t.Fatalf("runs = %+v", list.Runs)
	}
}

func TestRunEndpointsErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/runs/missing", http.StatusNotFound},
		{http.MethodPost, "/api/runs/missing/retry", http.StatusNotFound},
		{http.MethodGet, "/api/runs/x/unknown", http.StatusNotFound},
		{http.MethodGet, "/api/runs?limit=abc", http.StatusBadRequest},
		{http.MethodGet, "/assets", http.StatusMethodNotAllowed},
		{http.MethodGet, "/record", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/status", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		if r := h.do(t, tt.method, tt.path, "", nil); r.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, r.StatusCode, tt.want)
		}
	}

	if r := h.do(t, http.MethodPost, "/assets", `{"models": "nope"}`, nil); r.StatusCode != http.StatusBadRequest {
		t.Errorf("bad manifest = %d", r.StatusCode)
	}
}

func TestRecordAndScene(t *testing.T) {
	h := newHarness(t)

	r := h.do(t, http.MethodGet, "/api/scene", "", nil)
	if r.StatusCode != http.StatusNotFound {
		t.Fatalf("scene before capture = %d", r.StatusCode)
	}

	var bad map[string]string
	r = h.do(t, http.MethodPost, "/record", `{"frames": []}`, &bad)
	if r.StatusCode != http.StatusBadRequest || bad["error"] == "" {
		t.Fatalf("malformed capture = %d %v", r.StatusCode, bad)
	}
	if _, err := os.Stat(h.cfg.CapturePath()); !os.IsNotExist(err) {
		t.Fatalf("malformed capture must not be persisted: %v", err)
	}

	var rec api.RecordResponse
	r = h.do(t, http.MethodPost, "/record", testCapture, &rec)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("record status = %d", r.StatusCode)
	}
	if rec.Capture.Frames != 2 || rec.Capture.Path != h.cfg.CapturePath() {
		t.Fatalf("record response = %+v", rec)
	}
	data, err := os.ReadFile(h.cfg.CapturePath())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != testCapture {
		t.Fatal("capture not persisted verbatim")
	}

	var sc api.SceneResponse
	r = h.do(t, http.MethodGet, "/api/scene", "", &sc)
	if r.StatusCode != http.StatusOK {
		t.Fatalf("scene status = %d", r.StatusCode)
	}
	if sc.Scene == nil || sc.Summary.Players != 1 || sc.Summary.GUI != 1 || sc.Summary.FrameEnd != 2 {
		t.Fatalf("scene summary = %+v", sc.Summary)
	}

	var summaryOnly api.SceneResponse
	h.do(t, http.MethodGet, "/api/scene?summary=1", "", &summaryOnly)
	if summaryOnly.Scene != nil || summaryOnly.Summary.Players != 1 {
		t.Fatalf("summary-only response = %+v", summaryOnly)
	}

	status := h.daemon.Status(context.Background())
	if status.LatestCapture == nil || status.LatestCapture.Frames != 2 || status.Scene == nil {
		t.Fatalf("status = %+v", status)
	}
}

func TestAuthMiddleware(t *testing.T) {
	called := false
	handler := authMiddleware("secret", func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	for _, header := range []string{"", "Bearer wrong", "Basic secret"} {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: code = %d", header, w.Code)
		}
	}
	if called {
		t.Fatal("handler must not run without a valid token")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusNoContent || !called {
		t.Fatalf("valid token rejected: %d", w.Code)
	}
}

func TestRequestIDMiddlewareEchoesCallerID(t *testing.T) {
	handler := requestIDMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	handler(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestSceneRefreshesAfterAssetsResolve(t *testing.T) {
	h := newHarness(t)

	if r := h.do(t, http.MethodPost, "/record", testCapture, nil); r.StatusCode != http.StatusOK {
		t.Fatalf("record status = %d", r.StatusCode)
	}
	var before api.SceneResponse
	h.do(t, http.MethodGet, "/api/scene?summary=1", "", &before)
	if before.Summary.StaticMeshes != 0 {
		t.Fatalf("static meshes before resolve = %d", before.Summary.StaticMeshes)
	}

	if r := h.do(t, http.MethodPost, "/assets", `{"models":["21"]}`, nil); r.StatusCode != http.StatusOK {
		t.Fatalf("assets status = %d", r.StatusCode)
	}
	var after api.SceneResponse
	h.do(t, http.MethodGet, "/api/scene?summary=1", "", &after)
	if after.Summary.StaticMeshes != 1 {
		t.Fatalf("static meshes after resolve = %d", after.Summary.StaticMeshes)
	}

	// Nothing new on disk: the cached scene is kept.
	h.do(t, http.MethodPost, "/assets", `{"models":["21"]}`, nil)
	var again api.SceneResponse
	h.do(t, http.MethodGet, "/api/scene?summary=1", "", &again)
	if again.Summary.BuiltAt != after.Summary.BuiltAt {
		t.Fatalf("scene rebuilt without new assets: %s vs %s", again.Summary.BuiltAt, after.Summary.BuiltAt)
	}
}

func TestRequestBodyLimitIsIndependentOfAssetLimit(t *testing.T) {
	h := newHarness(t)
	cfg := *h.cfg
	cfg.Paths.MaxRequestMiB = 1
	cfg.CDN.MaxAssetMiB = 512
	handler := newAPIServer(&cfg, h.daemon, nil).server.Handler

	body := bytes.Repeat([]byte(" "), 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized capture = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/record", bytes.NewReader([]byte(testCapture)))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("capture within limit = %d: %s", w.Code, w.Body.String())
	}
}
