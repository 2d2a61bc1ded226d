package api

import (
	"encoding/json"

	"sodareplay/internal/scene"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Submission statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
)

// Summary mirrors resolution outcome counts.
type Summary struct {
	Total     int `json:"total"`
	Fetched   int `json:"fetched"`
	Skipped   int `json:"skipped"`
	Reused    int `json:"reused"`
	Written   int `json:"written"`
	Failed    int `json:"failed"`
	Invalid   int `json:"invalid"`
	Cancelled int `json:"cancelled"`
}

// AssetError itemizes one reference that did not resolve.
type AssetError struct {
	Section   string          `json:"section"`
	Character string          `json:"character,omitempty"`
	Key       string          `json:"key,omitempty"`
	Outcome   string          `json:"outcome"`
	Kind      string          `json:"kind,omitempty"`
	Message   string          `json:"message"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Duplicate reports a key referenced more than once in a submission.
type Duplicate struct {
	Key         string `json:"key"`
	Occurrences int    `json:"occurrences"`
	Distinct    bool   `json:"distinct"`
}

// AssetsResponse answers a manifest submission or a retry.
type AssetsResponse struct {
	Status     string       `json:"status"`
	RunID      string       `json:"runId"`
	Cancelled  bool         `json:"cancelled"`
	Summary    Summary      `json:"summary"`
	Duplicates []Duplicate  `json:"duplicates,omitempty"`
	Errors     []AssetError `json:"errors,omitempty"`
}

// AssetResult is a stored per-reference outcome.
type AssetResult struct {
	Section   string `json:"section"`
	Character string `json:"character,omitempty"`
	Key       string `json:"key,omitempty"`
	Path      string `json:"path,omitempty"`
	Outcome   string `json:"outcome"`
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Run describes a ledger run.
type Run struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	ParentID   string  `json:"parentId,omitempty"`
	StartedAt  string  `json:"startedAt,omitempty"`
	FinishedAt string  `json:"finishedAt,omitempty"`
	Summary    Summary `json:"summary"`
	Cancelled  bool    `json:"cancelled"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// RunResponse wraps a run and its per-asset results.
type RunResponse struct {
	Run     Run           `json:"run"`
	Results []AssetResult `json:"results"`
}

// Capture describes a persisted capture submission.
type Capture struct {
	ID         int64  `json:"id"`
	Path       string `json:"path"`
	Bytes      int64  `json:"bytes"`
	Frames     int    `json:"frames"`
	ReceivedAt string `json:"receivedAt,omitempty"`
}

// RecordResponse answers a capture submission.
type RecordResponse struct {
	Status  string  `json:"status"`
	Capture Capture `json:"capture"`
}

// SceneSummary counts the entities of a reconstructed scene.
type SceneSummary struct {
	FrameStart   int    `json:"frameStart"`
	FrameEnd     int    `json:"frameEnd"`
	Players      int    `json:"players"`
	GUI          int    `json:"gui"`
	StaticMeshes int    `json:"staticMeshes"`
	Characters   int    `json:"characters"`
	Materials    int    `json:"materials"`
	ImagePlanes  int    `json:"imagePlanes"`
	Speakers     int    `json:"speakers"`
	Animations   int    `json:"animations"`
	BuiltAt      string `json:"builtAt,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SceneResponse carries the cached scene and its summary.
type SceneResponse struct {
	Summary SceneSummary `json:"summary"`
	Scene   *scene.Scene `json:"scene,omitempty"`
}

// LedgerStats summarizes stored runs and captures.
type LedgerStats struct {
	Runs       int `json:"runs"`
	FailedRuns int `json:"failedRuns"`
	Captures   int `json:"captures"`
}

// Check mirrors a preflight result.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	LedgerPath    string        `json:"ledgerPath"`
	LockFilePath  string        `json:"lockFilePath"`
	ExportDir     string        `json:"exportDir"`
	CapturePath   string        `json:"capturePath"`
	Ledger        LedgerStats   `json:"ledger"`
	LatestCapture *Capture      `json:"latestCapture,omitempty"`
	Scene         *SceneSummary `json:"scene,omitempty"`
	Checks        []Check       `json:"checks"`
}
