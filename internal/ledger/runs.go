package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sodareplay/internal/assetref"
	"sodareplay/internal/logging"
	"sodareplay/internal/manifest"
	"sodareplay/internal/services"
)

// Run sources.
const (
	SourceAPI   = "api"
	SourceCLI   = "cli"
	SourceRetry = "retry"
)

// Run is a stored resolution run.
type Run struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	ParentID   string           `json:"parent_id,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Summary    manifest.Summary `json:"summary"`
	Cancelled  bool             `json:"cancelled"`
}

const runColumns = "id, source, parent_id, started_at, finished_at, total, fetched, skipped, reused, written, failed, invalid, cancelled, was_cancelled"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		parentID    sql.NullString
		startedRaw  string
		finishedRaw string
		cancelled   int
	)
	if err := scanner.Scan(
		&run.ID, &run.Source, &parentID, &startedRaw, &finishedRaw,
		&run.Summary.Total, &run.Summary.Fetched, &run.Summary.Skipped, &run.Summary.Reused,
		&run.Summary.Written, &run.Summary.Failed, &run.Summary.Invalid, &run.Summary.Cancelled,
		&cancelled,
	); err != nil {
		return nil, err
	}
	run.ParentID = parentID.String
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	run.Cancelled = cancelled != 0
	return &run, nil
}

// RecordRun stores report and its per-asset results in one transaction.
func (s *Store) RecordRun(ctx context.Context, report *manifest.Report, source, parentID string) error {
	if report == nil {
		return errors.New("record run: nil report")
	}
	sum := report.Summary
	cancelled := 0
	if report.Cancelled {
		cancelled = 1
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, source, nullableString(parentID),
			report.StartedAt.UTC().Format(timeLayout),
			report.FinishedAt.UTC().Format(timeLayout),
			sum.Total, sum.Fetched, sum.Skipped, sum.Reused, sum.Written, sum.Failed, sum.Invalid, sum.Cancelled,
			cancelled,
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO asset_results (run_id, seq, section, character_name, asset_key, path, outcome, error_message, error_kind, raw)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare results: %w", err)
		}
		defer stmt.Close()
		for i, res := range report.Results {
			if _, err := stmt.ExecContext(ctx,
				report.RunID, i, string(res.Section), res.Character, string(res.Key), res.Path,
				string(res.Outcome), nullableString(res.Error), nullableString(res.ErrorKind), string(res.Raw),
			); err != nil {
				return fmt.Errorf("insert result %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns the newest runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run or an error matching services.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "get run", id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// Results returns the per-asset results of a run in manifest order.
func (s *Store) Results(ctx context.Context, runID string) ([]manifest.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT section, character_name, asset_key, path, outcome, error_message, error_kind, raw
         FROM asset_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []manifest.Result
	for rows.Next() {
		var (
			res                   manifest.Result
			section, key, outcome string
			errMsg, errKind       sql.NullString
			raw                   string
		)
		if err := rows.Scan(&section, &res.Character, &key, &res.Path, &outcome, &errMsg, &errKind, &raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.Section = manifest.Section(section)
		res.Key = assetref.Key(key)
		res.Outcome = manifest.Outcome(outcome)
		res.Error = errMsg.String
		res.ErrorKind = errKind.String
		res.Raw = json.RawMessage(raw)
		results = append(results, res)
	}
	return results, rows.Err()
}

// RetryManifest rebuilds a manifest of the run's retryable failures.
func (s *Store) RetryManifest(ctx context.Context, runID string) (*manifest.Manifest, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	results, err := s.Results(ctx, runID)
	if err != nil {
		return nil, err
	}
	return manifest.RetryManifest(results), nil
}

// Observer returns a resolver observer that records every report. Runs
// resolved under WithParent are recorded with SourceRetry.
func (s *Store) Observer(source string, logger *slog.Logger) manifest.Observer {
	log := logging.NewComponentLogger(logger, "ledger")
	return func(ctx context.Context, report *manifest.Report) {
		src := source
		parent, ok := ParentFromContext(ctx)
		if ok {
			src = SourceRetry
		}
		if err := s.RecordRun(context.WithoutCancel(ctx), report, src, parent); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, log), "run not recorded", "ledger_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
				logging.String(logging.FieldImpact, "run cannot be listed or retried later"),
			)
		}
	}
}

type parentKey struct{}

// WithParent marks runs resolved under ctx as retries of parentID.
func WithParent(ctx context.Context, parentID string) context.Context {
	if parentID == "" {
		return ctx
	}
	return context.WithValue(ctx, parentKey{}, parentID)
}

// ParentFromContext returns the retried run ID, if any.
func ParentFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(parentKey{}).(string)
	return v, ok && v != ""
}
