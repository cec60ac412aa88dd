package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader is a definition source that can re-read its files.
type Reloader interface {
	Reload() error
}

// watchDebounce collapses the burst of events an editor produces on save.
const watchDebounce = 200 * time.Millisecond

// WatchDefinitions reloads r whenever a file in dir changes, until ctx is
// done. A failed reload keeps the previous definitions and is only logged.
func WatchDefinitions(ctx context.Context, dir string, r Reloader, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("Watching funnel definitions", "dir", dir)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)
		case <-pending:
			pending = nil
			if err := r.Reload(); err != nil {
				logger.Error("Reload failed, keeping previous definitions", "err", err)
				continue
			}
			logger.Info("Funnel definitions reloaded", "dir", dir)
		}
	}
}
