// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package style keeps the author's style guide loaded and current.
//
// # Description
//
// The style guide is a plain text file whose content is pasted into edit
// proposal prompts. Authors adjust it between runs, so the watcher reloads
// it on change instead of requiring a service restart. Events are
// debounced because editors fire several writes per save.
//
// A missing file is an empty guide, not an error. The file's directory is
// watched rather than the file itself, which survives the rename-replace
// save strategy most editors use.
//
// # Thread Safety
//
// Safe for concurrent use. Current never blocks.
package style

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures the Watcher.
type WatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before reloading.
	// Default: 500ms
	DebounceWindow time.Duration
}

// DefaultWatcherOptions returns the production defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		DebounceWindow: 500 * time.Millisecond,
	}
}

// Watcher tracks one style guide file.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	current  atomic.Value // string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// NewWatcher creates a watcher for the given style guide path.
//
// An empty path disables watching entirely; Current returns "" forever.
// The initial content is loaded immediately, watching begins on Start.
func NewWatcher(path string, opts *WatcherOptions) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultWatcherOptions()
		opts = &defaults
	}

	w := &Watcher{
		path:     path,
		debounce: opts.DebounceWindow,
		done:     make(chan struct{}),
	}
	w.current.Store("")

	if path == "" {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.watcher = fsw
	w.reload()

	return w, nil
}

// Start begins watching the style guide's directory.
func (w *Watcher) Start(ctx context.Context) error {
	if w.watcher == nil {
		return nil // Disabled, nothing to watch
	}

	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil // Already watching
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.loop(ctx)
	return nil
}

// Stop stops the watcher. The last loaded content stays available.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true while the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// Current returns the style guide text as of the last reload.
func (w *Watcher) Current() string {
	return w.current.Load().(string)
}

// loop debounces events touching the guide file and reloads after the
// window expires.
func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Style guide watcher error", "path", w.path, "error", err)
		}
	}
}

// reload reads the guide from disk. A missing or unreadable file loads
// as an empty guide.
func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read style guide", "path", w.path, "error", err)
		}
		w.current.Store("")
		return
	}
	w.current.Store(string(data))
	slog.Debug("Style guide loaded", "path", w.path, "bytes", len(data))
}
