package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"sodareplay/internal/logging"
)

const watchDebounce = 250 * time.Millisecond

// captureWatcher calls onChange after the capture file is created, written,
// or renamed into place. The parent directory is watched since atomic writes
// replace the file.
type captureWatcher struct {
	path     string
	onChange func(context.Context)
	logger   *slog.Logger
	fs       *fsnotify.Watcher
	done     chan struct{}
}

func newCaptureWatcher(path string, onChange func(context.Context), logger *slog.Logger) (*captureWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &captureWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logging.NewComponentLogger(logger, "capture-watcher"),
		fs:       fsw,
		done:     make(chan struct{}),
	}, nil
}

func (w *captureWatcher) run(ctx context.Context) {
	defer close(w.done)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.logger.Info("capture changed, rebuilding scene",
				logging.String(logging.FieldEventType, "capture_changed"),
				logging.String("path", w.path),
			)
			w.onChange(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("capture watcher error", logging.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

func (w *captureWatcher) close() {
	_ = w.fs.Close()
	<-w.done
}
