package framework

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher watches a configuration file and invokes a callback when it
// changes. It watches the containing directory rather than the file itself so
// that editors and config management tools that replace the file atomically
// (write + rename) are still observed.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	logger   Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewConfigWatcher creates a watcher for the file at path. The onChange
// callback runs on the watcher goroutine; keep it short or hand off.
func NewConfigWatcher(path string, logger Logger, onChange func()) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config directory: %w", err)
	}

	w := &ConfigWatcher{
		path:     abs,
		watcher:  watcher,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

func (w *ConfigWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			changed, err := filepath.Abs(event.Name)
			if err != nil || changed != w.path {
				continue
			}
			w.logger.Debug("Config file changed", "path", w.path)
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops watching. A second call returns ErrWatcherClosed.
func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
