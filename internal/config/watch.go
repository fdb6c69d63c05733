// Package config provides live reload of the configuration file, so
// edits to detector.enabled apply without a daemon restart.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the config file after on-disk writes.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchFile watches the config file at path and invokes onChange with a
// freshly loaded Config after every write. Reload failures keep the
// previous configuration and are logged, not surfaced. The watch covers
// the parent directory: editors replace files on save, and a watch on
// the old inode would go quiet.
func WatchFile(path string, logger zerolog.Logger, onChange func(*Config)) (*Watcher, error) {
	path = expandPath(path)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go w.loop(path, logger, onChange)
	return w, nil
}

func (w *Watcher) loop(path string, logger zerolog.Logger, onChange func(*Config)) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadFromPath(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous")
				continue
			}
			logger.Debug().Str("path", path).Msg("config file reloaded")
			onChange(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops the watcher. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
