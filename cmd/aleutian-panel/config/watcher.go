// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write
// before reloading.
const DefaultDebounce = 200 * time.Millisecond

// ChangeHandler receives each successfully reloaded config.
type ChangeHandler func(PanelConfig)

// Watcher reloads the config file when it changes on disk.
//
// # Description
//
// The parent directory is watched rather than the file itself, so editors
// that save by renaming a temp file over the original are still seen.
// Bursts of events are debounced into a single reload. A reload that
// fails to read, parse, or validate is logged and the previous config
// stays in effect. A removed file is ignored until it reappears.
//
// # Thread Safety
//
// The handler runs on the watcher's goroutine, one call at a time.
type Watcher struct {
	path     string
	lookup   LookupEnvFunc
	handler  ChangeHandler
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WatcherOptions configures NewWatcher.
type WatcherOptions struct {
	// Lookup is the environment source for overrides. Default: os.LookupEnv.
	Lookup LookupEnvFunc
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewWatcher creates a stopped watcher for the config at path.
//
// # Inputs
//
//   - path: Config file to watch; must be non-empty
//   - handler: Called with every successfully reloaded config
//   - opts: Optional settings
//
// # Outputs
//
//   - *Watcher: Call Start to begin watching and Stop to release it
//   - error: Non-nil if the OS watcher could not be created
func NewWatcher(path string, handler ChangeHandler, opts WatcherOptions) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config watcher needs a path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		lookup:   opts.Lookup,
		handler:  handler,
		logger:   opts.Logger,
		debounce: opts.Debounce,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

// Start begins watching. It returns once the directory watch is in place;
// events are processed until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Debug("watching config file", "path", w.path)
	return nil
}

// Stop ends watching and waits for an in-progress reload to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

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
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	if _, err := os.Stat(w.path); errors.Is(err, fs.ErrNotExist) {
		w.logger.Debug("config file gone, keeping current config", "path", w.path)
		return
	}
	cfg, _, err := Load(w.path, w.lookup)
	if err != nil {
		w.logger.Warn("config reload failed, keeping current config",
			"path", w.path,
			"error", err,
		)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	w.handler(cfg)
}
