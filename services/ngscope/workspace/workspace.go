// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace assembles a project: it discovers and parses the source
// files, indexes their declarations and wires a resolver over them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
	"github.com/AleutianAI/ngscope/services/ngscope/cache"
	"github.com/AleutianAI/ngscope/services/ngscope/config"
	"github.com/AleutianAI/ngscope/services/ngscope/index"
	"github.com/AleutianAI/ngscope/services/ngscope/resolve"
)

// ErrClosed is returned by operations on a closed workspace.
var ErrClosed = errors.New("workspace is closed")

// Option configures Open.
type Option func(*options)

type options struct {
	noCache bool
	logger  *slog.Logger
	cfg     *config.Config
}

// WithoutCache disables the persistent scope store even when the
// configuration enables it.
func WithoutCache() Option {
	return func(o *options) { o.noCache = true }
}

// WithLogger sets the logger used by the workspace and everything it wires.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig uses cfg instead of loading ngscope.config.yaml from the root.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// Workspace is one loaded project.
//
// Thread Safety:
//
//	Safe for concurrent use. Refresh may run while reports are being built;
//	a report started before a refresh may mix old and new results for the
//	changed file only.
type Workspace struct {
	root     string
	cfg      *config.Config
	program  *ast.Program
	index    *index.DeclarationIndex
	resolver *resolve.Resolver
	logger   *slog.Logger

	mu     sync.Mutex
	db     *badger.DB
	closed bool
}

// Open loads the project rooted at root.
//
// Description:
//
//	Loads the configuration, discovers the matching files, parses them on
//	the configured number of workers and indexes every top-level
//	declaration. Files that fail to parse are logged and skipped; they do
//	not fail Open. When the cache is enabled the scope store is opened
//	under the configured directory.
//
// Inputs:
//
//	ctx - Cancels discovery and parsing.
//	root - The project root directory.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Workspace - The loaded workspace. Close it when done.
//	error - Configuration, discovery, cache or cancellation failures.
func Open(ctx context.Context, root string, opts ...Option) (*Workspace, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, span := tracer.Start(ctx, "workspace.Open")
	defer span.End()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	cfg := o.cfg
	if cfg == nil {
		if cfg, err = config.Load(abs); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	w := &Workspace{
		root:   abs,
		cfg:    cfg,
		index:  index.NewDeclarationIndex(),
		logger: o.logger.With(slog.String("root", abs)),
	}
	w.program = ast.NewProgram(
		ast.WithWorkers(cfg.Workers),
		ast.WithParser(ast.NewTypeScriptParser(ast.WithTypeScriptMaxFileSize(cfg.MaxFileSize))),
		ast.WithProgramLogger(w.logger),
	)

	start := time.Now()
	paths, err := w.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if err := w.program.LoadFiles(ctx, paths); err != nil {
		var loadErr *ast.LoadError
		if !errors.As(err, &loadErr) {
			return nil, err
		}
		w.logger.Warn("some files could not be loaded", slog.Int("failed", len(loadErr.Errors)))
	}
	for _, f := range w.program.Files() {
		if err := w.index.IndexFile(f); err != nil {
			w.logger.Warn("indexing failed",
				slog.String("file", f.Path),
				slog.String("error", err.Error()),
			)
		}
	}

	resolverOpts := []resolve.Option{
		resolve.WithLogger(w.logger),
		resolve.WithPrivatePrefix(cfg.PrivatePrefix),
		resolve.WithStandaloneDefault(cfg.StandaloneDefault),
		resolve.WithModuleWrapperTypes(cfg.ModuleWrapperTypes...),
	}
	if len(cfg.MetadataFallback) > 0 {
		resolverOpts = append(resolverOpts, resolve.WithMetadataIndex(
			index.NewStaticMetadataIndex(cfg.MetadataFallback, w.index, index.WithMetadataLogger(w.logger)),
		))
	}
	if cfg.Cache.Enabled && !o.noCache {
		db, err := cache.OpenBadger(cfg.CacheDir(abs))
		if err != nil {
			return nil, err
		}
		store, err := cache.NewScopeStore(db, cfg.Cache.TTL, w.logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		w.db = db
		resolverOpts = append(resolverOpts, resolve.WithScopeStore(store))
	}
	w.resolver = resolve.NewResolver(w.program, resolverOpts...)

	openDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("files", len(w.program.Files())),
		attribute.Bool("cache", w.db != nil),
	)
	w.logger.Info("workspace opened",
		slog.Int("files", len(w.program.Files())),
		slog.Int("declarations", w.index.Stats().TotalEntries),
		slog.Bool("cache", w.db != nil),
		slog.Duration("duration", time.Since(start)),
	)
	return w, nil
}

// Discover walks the root and returns every file the configuration
// includes, in lexical order. Excluded directories are not entered.
func (w *Workspace) Discover(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel != "." && w.cfg.ExcludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.cfg.Matches(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files under %s: %w", w.root, err)
	}
	return paths, nil
}

// Refresh brings one file in line with the disk.
//
// Description:
//
//	A file that exists and is included is re-parsed and re-indexed; a file
//	that no longer exists, or is no longer included, is removed. When only
//	the bodies of the file changed, memoized results that depended on it
//	are pruned from the resolver. When the file was added or removed, or
//	its declared or exported names changed, the resolver is reset: name
//	lookups elsewhere, such as the unique-export fallback or the metadata
//	fallback's class lookup, may now answer differently.
//
// Outputs:
//
//	bool - True if the program changed.
//	error - Read or parse failures of an existing file.
func (w *Workspace) Refresh(ctx context.Context, path string) (bool, error) {
	if w.isClosed() {
		return false, ErrClosed
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.root, path)
	}
	normalized := ast.NormalizePath(abs)

	changed, reshaped := false, false
	info, statErr := os.Stat(abs)
	if statErr == nil && info.Mode().IsRegular() && w.Includes(abs) {
		prev, known := w.program.File(normalized)
		f, err := w.program.UpdateFile(ctx, abs)
		if err != nil {
			return false, err
		}
		if err := w.index.IndexFile(f); err != nil {
			return false, fmt.Errorf("indexing %s: %w", f.Path, err)
		}
		changed = true
		reshaped = !known || !ast.SameSurface(prev, f)
	} else if w.program.RemoveFile(normalized) {
		w.index.RemoveByFile(normalized)
		changed, reshaped = true, true
	}

	switch {
	case reshaped:
		w.resolver.Reset()
		w.logger.Debug("file names changed", slog.String("file", w.Rel(normalized)))
	case changed:
		pruned := w.resolver.Prune()
		w.logger.Debug("file refreshed",
			slog.String("file", w.Rel(normalized)),
			slog.Int("pruned", pruned),
		)
	}
	return changed, nil
}

// Includes reports whether an absolute path under the root is part of the
// project according to the configuration.
func (w *Workspace) Includes(abs string) bool {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
		return false
	}
	return w.cfg.Matches(rel)
}

// Rel returns path relative to the root with forward slashes. A path that
// cannot be made relative is returned unchanged.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.root, filepath.FromSlash(path))
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// Root returns the absolute project root.
func (w *Workspace) Root() string { return w.root }

// Config returns the loaded configuration.
func (w *Workspace) Config() *config.Config { return w.cfg }

// Program returns the parsed program.
func (w *Workspace) Program() *ast.Program { return w.program }

// Index returns the declaration index.
func (w *Workspace) Index() *index.DeclarationIndex { return w.index }

// Resolver returns the resolver over the program.
func (w *Workspace) Resolver() *resolve.Resolver { return w.resolver }

// Close releases the scope store. Closing twice is a no-op.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.db == nil {
		return nil
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("closing scope store: %w", err)
	}
	return nil
}

func (w *Workspace) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
