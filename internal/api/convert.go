package api

import (
	"time"

	"sodareplay/internal/ledger"
	"sodareplay/internal/manifest"
	"sodareplay/internal/preflight"
	"sodareplay/internal/scene"
)

// FromSummary converts resolution counts to their API representation.
func FromSummary(s manifest.Summary) Summary {
	return Summary{
		Total:     s.Total,
		Fetched:   s.Fetched,
		Skipped:   s.Skipped,
		Reused:    s.Reused,
		Written:   s.Written,
		Failed:    s.Failed,
		Invalid:   s.Invalid,
		Cancelled: s.Cancelled,
	}
}

// FromReport converts a resolution report into a submission response.
func FromReport(report *manifest.Report) AssetsResponse {
	if report == nil {
		return AssetsResponse{Status: StatusOK}
	}
	resp := AssetsResponse{
		Status:    StatusOK,
		RunID:     report.RunID,
		Cancelled: report.Cancelled,
		Summary:   FromSummary(report.Summary),
	}
	if !report.OK() {
		resp.Status = StatusPartial
	}
	for _, dup := range report.Duplicates {
		resp.Duplicates = append(resp.Duplicates, Duplicate{
			Key:         string(dup.Key),
			Occurrences: dup.Occurrences,
			Distinct:    dup.Distinct,
		})
	}
	for _, res := range report.Failures() {
		resp.Errors = append(resp.Errors, AssetError{
			Section:   string(res.Section),
			Character: res.Character,
			Key:       string(res.Key),
			Outcome:   string(res.Outcome),
			Kind:      res.ErrorKind,
			Message:   res.Error,
			Raw:       res.Raw,
		})
	}
	return resp
}

// FromResults converts stored per-asset results.
func FromResults(results []manifest.Result) []AssetResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]AssetResult, 0, len(results))
	for _, res := range results {
		out = append(out, AssetResult{
			Section:   string(res.Section),
			Character: res.Character,
			Key:       string(res.Key),
			Path:      res.Path,
			Outcome:   string(res.Outcome),
			ErrorKind: res.ErrorKind,
			Error:     res.Error,
		})
	}
	return out
}

// FromRun converts a ledger run.
func FromRun(run *ledger.Run) Run {
	if run == nil {
		return Run{}
	}
	return Run{
		ID:         run.ID,
		Source:     run.Source,
		ParentID:   run.ParentID,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		Summary:    FromSummary(run.Summary),
		Cancelled:  run.Cancelled,
	}
}

// FromRuns converts a slice of ledger runs.
func FromRuns(runs []*ledger.Run) []Run {
	if len(runs) == 0 {
		return nil
	}
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromCapture converts a ledger capture record.
func FromCapture(c *ledger.Capture) *Capture {
	if c == nil {
		return nil
	}
	return &Capture{
		ID:         c.ID,
		Path:       c.Path,
		Bytes:      c.Bytes,
		Frames:     c.Frames,
		ReceivedAt: formatTime(c.ReceivedAt),
	}
}

// FromStats converts ledger counters.
func FromStats(st ledger.Stats) LedgerStats {
	return LedgerStats{Runs: st.Runs, FailedRuns: st.FailedRuns, Captures: st.Captures}
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []Check {
	out := make([]Check, 0, len(results))
	for _, r := range results {
		out = append(out, Check{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// SummarizeScene counts the entities of s. A nil scene with a build error
// yields a summary carrying only the error.
func SummarizeScene(s *scene.Scene, builtAt time.Time, buildErr error) SceneSummary {
	summary := SceneSummary{BuiltAt: formatTime(builtAt)}
	if buildErr != nil {
		summary.Error = buildErr.Error()
	}
	if s == nil {
		return summary
	}
	summary.FrameStart = s.FrameStart
	summary.FrameEnd = s.FrameEnd
	summary.Players = len(s.Players)
	summary.GUI = len(s.GUI)
	summary.StaticMeshes = len(s.StaticMeshes)
	summary.Characters = len(s.Characters)
	summary.Materials = len(s.Materials)
	summary.ImagePlanes = len(s.ImagePlanes)
	summary.Speakers = len(s.Speakers)
	summary.Animations = len(s.Animations)
	return summary
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
