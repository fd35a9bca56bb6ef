// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

// DefaultDebounce is how long Watch waits for a burst of events to settle.
const DefaultDebounce = 150 * time.Millisecond

// ChangeFunc receives the files a debounced batch of events changed.
type ChangeFunc func(ctx context.Context, changed []string)

// Watch refreshes files as they change on disk until ctx is canceled.
//
// Description:
//
//	Every directory under the root that the configuration does not exclude
//	is watched; directories created later are added as they appear.
//	Events are collected until debounce passes without a new one, then
//	each affected file is refreshed in path order and onChange is called
//	with the files that actually changed the program.
//
// Inputs:
//
//	ctx - Stops the watch. Cancellation is not an error.
//	debounce - Quiet period before a batch is processed. Zero or negative
//	           uses DefaultDebounce.
//	onChange - Called after each batch that changed something. May be nil.
//
// Outputs:
//
//	error - Failure to set up the watcher.
func (w *Workspace) Watch(ctx context.Context, debounce time.Duration, onChange ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if _, err := w.watchTree(watcher, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", slog.Int("dirs", len(watcher.WatchList())))

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && w.isWatchableDir(event.Name) {
				// Files may land in the directory before it is watched.
				files, err := w.watchTree(watcher, event.Name)
				if err != nil {
					w.logger.Warn("cannot watch new directory",
						slog.String("dir", event.Name),
						slog.String("error", err.Error()),
					)
				}
				for _, f := range files {
					pending[f] = true
				}
				if len(files) > 0 {
					timer.Reset(debounce)
				}
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			changed := w.flush(ctx, pending)
			pending = make(map[string]bool)
			if len(changed) > 0 && onChange != nil {
				onChange(ctx, changed)
			}
		}
	}
}

// flush refreshes the pending paths and returns those that changed the
// program, relative to the root.
func (w *Workspace) flush(ctx context.Context, pending map[string]bool) []string {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var changed []string
	for _, p := range paths {
		ok, err := w.Refresh(ctx, p)
		if err != nil {
			w.logger.Warn("refresh failed",
				slog.String("file", w.Rel(p)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			changed = append(changed, w.Rel(p))
		}
	}
	if len(changed) > 0 {
		watchRefreshes.Add(float64(len(changed)))
	}
	return changed
}

// relevant reports whether an event on path can affect the program: the
// file is included now, or it was loaded before.
func (w *Workspace) relevant(path string) bool {
	if w.Includes(path) {
		return true
	}
	_, ok := w.program.File(ast.NormalizePath(path))
	return ok
}

func (w *Workspace) isWatchableDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	return err == nil && !w.cfg.ExcludesDir(rel)
}

// watchTree adds dir and every non-excluded directory below it, and
// returns the included files it passed.
func (w *Workspace) watchTree(watcher *fsnotify.Watcher, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if w.Includes(path) {
				files = append(files, path)
			}
			return nil
		}
		if rel, relErr := filepath.Rel(w.root, path); relErr == nil && rel != "." && w.cfg.ExcludesDir(rel) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
	return files, err
}
