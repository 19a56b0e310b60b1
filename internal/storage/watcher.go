package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Benny93/conceptmap-go/internal/logger"
)

// DefaultWatchDebounce batches bursts of events from one replace.
const DefaultWatchDebounce = 500 * time.Millisecond

// WatchSnapshot calls onChange after the snapshot file at osPath is
// written, renamed into place or removed. The parent directory is watched
// because atomic replaces swap the inode. Blocks until ctx is cancelled.
func WatchSnapshot(ctx context.Context, osPath string, debounce time.Duration, log *logger.Logger, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	if log == nil {
		log = logger.Nop()
	}

	abs, err := filepath.Abs(osPath)
	if err != nil {
		return fmt.Errorf("resolving snapshot path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			pending = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("snapshot watch error", "error", err)

		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		}
	}
}
