package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sodareplay/internal/services"
)

// Capture is a recorded capture submission.
type Capture struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Bytes      int64     `json:"bytes"`
	Frames     int       `json:"frames"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecordCapture notes that a capture of size bytes and frames frames was saved.
func (s *Store) RecordCapture(ctx context.Context, path string, size int64, frames int) (*Capture, error) {
	now := time.Now().UTC()
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO captures (path, bytes, frames, received_at) VALUES (?, ?, ?, ?)`,
			path, size, frames, now.Format(timeLayout))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record capture: %w", err)
	}
	return &Capture{ID: id, Path: path, Bytes: size, Frames: frames, ReceivedAt: now}, nil
}

// LatestCapture returns the most recent capture submission.
func (s *Store) LatestCapture(ctx context.Context) (*Capture, error) {
	var (
		c   Capture
		raw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, bytes, frames, received_at FROM captures ORDER BY id DESC LIMIT 1`,
	).Scan(&c.ID, &c.Path, &c.Bytes, &c.Frames, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "ledger", "latest capture", "no captures recorded", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("latest capture: %w", err)
	}
	c.ReceivedAt = parseTime(raw)
	return &c, nil
}

// Stats summarizes ledger contents.
type Stats struct {
	Runs       int `json:"runs"`
	FailedRuns int `json:"failed_runs"`
	Captures   int `json:"captures"`
}

// Stats counts stored runs and captures.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
            (SELECT COUNT(1) FROM runs),
            (SELECT COUNT(1) FROM runs WHERE failed + invalid + cancelled > 0),
            (SELECT COUNT(1) FROM captures)`,
	).Scan(&st.Runs, &st.FailedRuns, &st.Captures)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	return st, nil
}
