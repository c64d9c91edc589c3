package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cjeanneret/gpcam/internal/debug"
)

// reloadDelay groups the burst of events an editor produces on save.
const reloadDelay = 100 * time.Millisecond

// Watcher reloads a configuration file when it changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
}

// Watch starts watching path. The parent directory is watched so that
// editors replacing the file (rename on save) are still seen.
func Watch(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file change watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, watcher: fw}, nil
}

// Run calls onChange with every valid new version of the file until ctx is
// done. Invalid versions are logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			pending = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Error(fmt.Errorf("config watcher: %w", err))
		case <-pending:
			pending = nil
			cfg, err := Load(w.path)
			if err != nil {
				debug.Error(fmt.Errorf("reload %s: %w", w.path, err))
				continue
			}
			debug.Info("Config reloaded: %s", w.path)
			onChange(cfg)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
