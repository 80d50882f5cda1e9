package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits after the last write
// before rebuilding.
const DefaultDebounce = 2 * time.Second

// RebuildFunc reruns the analysis after the watched bundle changed.
type RebuildFunc func(ctx context.Context) error

type watchOptions struct {
	debounce time.Duration
	logger   *zap.Logger
}

// WatchOption configures WatchBundle.
type WatchOption func(*watchOptions)

// WithDebounce sets the quiet period before a rebuild.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher's logger.
func WithWatchLogger(logger *zap.Logger) WatchOption {
	return func(o *watchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WatchBundle monitors a bundle file and calls rebuild after it changes.
// Bursts of events are batched into one rebuild. A failing rebuild is
// logged and watching continues.
//
// The parent directory is watched rather than the file itself, so editors
// that replace the file by rename keep triggering rebuilds.
// Blocks until the context is cancelled.
func WatchBundle(ctx context.Context, path string, rebuild RebuildFunc, opts ...WatchOption) error {
	o := watchOptions{debounce: DefaultDebounce, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving bundle path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	pending := false
	batchTimer := time.NewTimer(o.debounce)
	batchTimer.Stop()
	defer batchTimer.Stop()

	o.logger.Info("watching bundle", zap.String("path", abs), zap.Duration("debounce", o.debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !shouldRebuild(event, abs) {
				continue
			}
			o.logger.Debug("bundle changed", zap.String("op", event.Op.String()))
			pending = true
			batchTimer.Reset(o.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("watch error", zap.Error(err))

		case <-batchTimer.C:
			if !pending {
				continue
			}
			pending = false
			o.logger.Info("rebuilding after bundle change", zap.String("path", abs))
			if err := rebuild(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.logger.Error("rebuild failed", zap.Error(err))
			}
		}
	}
}

// shouldRebuild reports whether event touches the bundle with a write,
// create or rename. Removal alone waits for the file to come back.
func shouldRebuild(event fsnotify.Event, bundlePath string) bool {
	if filepath.Clean(event.Name) != bundlePath {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
