package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sodareplay/internal/api"
	"sodareplay/internal/assetref"
	"sodareplay/internal/assetstore"
	"sodareplay/internal/capture"
	"sodareplay/internal/cdn"
	"sodareplay/internal/config"
	"sodareplay/internal/fileutil"
	"sodareplay/internal/ledger"
	"sodareplay/internal/logging"
	"sodareplay/internal/manifest"
	"sodareplay/internal/preflight"
	"sodareplay/internal/scene"
)

// Daemon coordinates the ingest services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	resolver *manifest.Resolver
	runs     *api.RunService
	scenes   *sceneCache

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	watcher *captureWatcher

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option customizes daemon construction.
type Option func(*options)

type options struct {
	fetcher manifest.Fetcher
}

// WithFetcher replaces the CDN client used for asset downloads.
func WithFetcher(f manifest.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and ledger store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = cdn.NewFromConfig(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "sodareplay.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.resolver = manifest.NewResolver(
		assetref.NewLayout(cfg.Paths.ExportDir),
		o.fetcher,
		logger,
		manifest.WithWorkers(cfg.Resolver.Workers),
		manifest.WithStore(assetstore.New(assetstore.NewFileCache(), logger)),
		manifest.WithObserver(manifest.LogObserver(logger)),
		manifest.WithObserver(store.Observer(ledger.SourceAPI, logger)),
		manifest.WithObserver(d.onAssetsResolved),
	)
	d.runs = api.NewRunService(store, d.resolver)
	d.scenes = newSceneCache(d.buildScene)
	return d, nil
}

// Start acquires the daemon lock, starts the HTTP API, and, when enabled,
// the capture watcher.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sodareplay daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.api = newAPIServer(d.cfg, d, d.logger)
	if err := d.api.start(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	if d.cfg.Replay.WatchCaptures {
		w, err := newCaptureWatcher(d.cfg.CapturePath(), d.onCaptureChanged, d.logger)
		if err != nil {
			d.api.stop()
			d.abortStart()
			return fmt.Errorf("start capture watcher: %w", err)
		}
		d.watcher = w
		go w.run(d.ctx)
	}

	d.running.Store(true)
	d.reportPreflight(d.ctx)
	d.logger.Info("sodareplay daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()),
		logging.Bool("watch_captures", d.watcher != nil),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
	d.api = nil
}

// Stop stops the API and watcher and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	if d.watcher != nil {
		d.watcher.close()
		d.watcher = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("sodareplay daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the HTTP API listens on, or "" when stopped.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Resolver exposes the manifest resolver.
func (d *Daemon) Resolver() *manifest.Resolver { return d.resolver }

// Runs exposes ledger run operations.
func (d *Daemon) Runs() *api.RunService { return d.runs }

// RecordCapture validates data, persists it verbatim to the capture path,
// and notes it in the ledger. The cached scene is invalidated.
func (d *Daemon) RecordCapture(ctx context.Context, data []byte) (*ledger.Capture, error) {
	timeline, err := capture.Parse(data)
	if err != nil {
		return nil, err
	}
	path := d.cfg.CapturePath()
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("persist capture: %w", err)
	}
	d.scenes.invalidate()
	rec, err := d.store.RecordCapture(ctx, path, int64(len(data)), timeline.Len())
	if err != nil {
		return nil, err
	}
	d.logger.Info("capture recorded",
		logging.String(logging.FieldEventType, "capture_recorded"),
		logging.String("path", path),
		logging.Int("frames", timeline.Len()),
		logging.Int("map_parts", len(timeline.MapParts)),
	)
	return rec, nil
}

// Scene returns the cached scene, rebuilding it when stale.
func (d *Daemon) Scene(ctx context.Context) (*scene.Scene, api.SceneSummary, error) {
	return d.scenes.get(ctx)
}

func (d *Daemon) buildScene(ctx context.Context) (*scene.Scene, error) {
	timeline, err := capture.ReadFile(d.cfg.CapturePath())
	if err != nil {
		return nil, err
	}
	assets, err := manifest.ScanAssets(assetref.NewLayout(d.cfg.Paths.ExportDir))
	if err != nil {
		return nil, err
	}
	policy, err := scene.ParseRosterPolicy(d.cfg.Replay.RosterPolicy)
	if err != nil {
		return nil, err
	}
	return scene.Reconstruct(ctx, timeline, assets,
		scene.WithRosterPolicy(policy),
		scene.WithLogger(d.logger),
	)
}

func (d *Daemon) onCaptureChanged(ctx context.Context) {
	d.scenes.invalidate()
	if _, _, err := d.scenes.get(ctx); err != nil {
		logging.WarnWithContext(d.logger, "scene rebuild failed", "scene_rebuild_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the capture file for malformed frames"),
			logging.String(logging.FieldImpact, "GET /api/scene reports the error until the next capture"),
		)
	}
}

// onAssetsResolved drops the cached scene once a run has put new files on
// disk; the next scene request rescans the store.
func (d *Daemon) onAssetsResolved(_ context.Context, report *manifest.Report) {
	s := report.Summary
	if s.Fetched+s.Reused+s.Written == 0 {
		return
	}
	d.scenes.invalidate()
}

func (d *Daemon) reportPreflight(ctx context.Context) []preflight.Result {
	results := preflight.RunAll(ctx, d.cfg)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run soda status for details"),
			logging.String(logging.FieldImpact, "submissions touching this dependency may fail"),
		)
	}
	return results
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		ExportDir:    d.cfg.Paths.ExportDir,
		CapturePath:  d.cfg.CapturePath(),
		Checks:       api.FromChecks(preflight.RunAll(ctx, d.cfg)),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Ledger = api.FromStats(stats)
	} else {
		d.logger.Warn("ledger stats unavailable", logging.Error(err))
	}
	if latest, err := d.store.LatestCapture(ctx); err == nil {
		status.LatestCapture = api.FromCapture(latest)
	}
	if summary, ok := d.scenes.peek(); ok {
		status.Scene = &summary
	}
	return status
}
