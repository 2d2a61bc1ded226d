package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"sodareplay/internal/ledger"
	"sodareplay/internal/manifest"
	"sodareplay/internal/services"
)

type mockRunReader struct {
	runs    []*ledger.Run
	results map[string][]manifest.Result
}

func (m *mockRunReader) ListRuns(_ context.Context, limit int) ([]*ledger.Run, error) {
	if limit > 0 && limit < len(m.runs) {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockRunReader) GetRun(_ context.Context, id string) (*ledger.Run, error) {
	for _, run := range m.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "ledger", "get run", id, nil)
}

func (m *mockRunReader) Results(_ context.Context, id string) ([]manifest.Result, error) {
	return m.results[id], nil
}

func (m *mockRunReader) RetryManifest(ctx context.Context, id string) (*manifest.Manifest, error) {
	if _, err := m.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return manifest.RetryManifest(m.results[id]), nil
}

type recordingResolver struct {
	parent string
	got    *manifest.Manifest
}

func (r *recordingResolver) Resolve(ctx context.Context, m *manifest.Manifest) (*manifest.Report, error) {
	r.parent, _ = ledger.ParentFromContext(ctx)
	r.got = m
	return &manifest.Report{RunID: "child", Summary: manifest.Summary{Total: m.Len(), Fetched: m.Len()}}, nil
}

func newMockReader() *mockRunReader {
	return &mockRunReader{
		runs: []*ledger.Run{
			{ID: "clean", Source: ledger.SourceAPI},
			{ID: "broken", Source: ledger.SourceAPI, Summary: manifest.Summary{Total: 2, Failed: 1, Fetched: 1}},
		},
		results: map[string][]manifest.Result{
			"clean": {{Section: manifest.SectionModels, Key: "mesh_1", Outcome: manifest.OutcomeSkipped, Raw: json.RawMessage(`"1"`)}},
			"broken": {
				{Section: manifest.SectionModels, Key: "mesh_1", Outcome: manifest.OutcomeFetched, Raw: json.RawMessage(`"1"`)},
				{Section: manifest.SectionSounds, Key: "sound_7", Outcome: manifest.OutcomeFailed, Raw: json.RawMessage(`"7"`)},
			},
		},
	}
}

func TestRunServiceListAndDescribe(t *testing.T) {
	svc := NewRunService(newMockReader(), nil)

	runs, err := svc.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "clean" {
		t.Fatalf("unexpected runs %+v", runs)
	}

	resp, err := svc.Describe(context.Background(), "broken")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if resp.Run.ID != "broken" || len(resp.Results) != 2 || resp.Results[1].Outcome != "failed" {
		t.Fatalf("unexpected describe %+v", resp)
	}

	if _, err := svc.Describe(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunServiceRetry(t *testing.T) {
	resolver := &recordingResolver{}
	svc := NewRunService(newMockReader(), resolver)

	resp, err := svc.Retry(context.Background(), "broken")
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if resolver.parent != "broken" {
		t.Fatalf("parent = %q", resolver.parent)
	}
	if len(resolver.got.Sounds) != 1 || len(resolver.got.Models) != 0 {
		t.Fatalf("retry manifest = %+v", resolver.got)
	}
	if resp.RunID != "child" || resp.Status != StatusOK {
		t.Fatalf("unexpected response %+v", resp)
	}

	if _, err := svc.Retry(context.Background(), "clean"); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry, got %v", err)
	}
	if _, err := svc.Retry(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunServiceRetryWithoutResolver(t *testing.T) {
	svc := NewRunService(newMockReader(), nil)
	if _, err := svc.Retry(context.Background(), "broken"); err == nil {
		t.Fatal("expected error without resolver")
	}
}

func TestNewRunServiceNilStore(t *testing.T) {
	svc := NewRunService(nil, nil)
	if svc != nil {
		t.Fatal("expected nil service")
	}
	if resp, err := svc.Describe(context.Background(), "any"); err == nil || resp != nil {
		t.Fatalf("Describe on nil service = %v, %v", resp, err)
	}
	if _, err := svc.Retry(context.Background(), "any"); err == nil {
		t.Fatal("expected Retry on nil service to fail")
	}
	runs, err := svc.List(context.Background(), 10)
	if err != nil || len(runs) != 0 {
		t.Fatalf("List on nil service = %v, %v", runs, err)
	}
}
