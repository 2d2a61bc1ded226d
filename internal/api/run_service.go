package api

import (
	"context"
	"errors"
	"fmt"

	"sodareplay/internal/ledger"
	"sodareplay/internal/manifest"
)

// ErrNothingToRetry is returned when a run has no failed or cancelled references.
var ErrNothingToRetry = errors.New("nothing to retry")

var errNoRunStore = errors.New("run store unavailable")

// RunReader abstracts ledger interactions needed for API queries.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]*ledger.Run, error)
	GetRun(ctx context.Context, id string) (*ledger.Run, error)
	Results(ctx context.Context, runID string) ([]manifest.Result, error)
	RetryManifest(ctx context.Context, runID string) (*manifest.Manifest, error)
}

// Resolver resolves a manifest into a report.
type Resolver interface {
	Resolve(ctx context.Context, m *manifest.Manifest) (*manifest.Report, error)
}

// RunService exposes ledger run operations returning API DTOs.
type RunService struct {
	store    RunReader
	resolver Resolver
}

// NewRunService constructs a RunService. resolver may be nil when retries
// are not offered.
func NewRunService(store RunReader, resolver Resolver) *RunService {
	if store == nil {
		return nil
	}
	return &RunService{store: store, resolver: resolver}
}

// List returns the newest runs first.
func (s *RunService) List(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}

// Describe fetches a run and its per-asset results.
func (s *RunService) Describe(ctx context.Context, id string) (*RunResponse, error) {
	if s == nil || s.store == nil {
		return nil, errNoRunStore
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Results(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunResponse{Run: FromRun(run), Results: FromResults(results)}, nil
}

// Retry resolves the retryable failures of run id again. The new run is
// linked to id through ledger.WithParent.
func (s *RunService) Retry(ctx context.Context, id string) (*AssetsResponse, error) {
	if s == nil || s.store == nil {
		return nil, errNoRunStore
	}
	if s.resolver == nil {
		return nil, errors.New("resolver unavailable")
	}
	m, err := s.store.RetryManifest(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Empty() {
		return nil, fmt.Errorf("run %s: %w", id, ErrNothingToRetry)
	}
	report, err := s.resolver.Resolve(ledger.WithParent(ctx, id), m)
	if err != nil {
		return nil, err
	}
	resp := FromReport(report)
	return &resp, nil
}
