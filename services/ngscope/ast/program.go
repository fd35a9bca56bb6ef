// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the default number of concurrent parses during Load.
const DefaultWorkers = 8

// LoadError aggregates per-file failures from LoadFiles.
//
// Files that failed are absent from the program; every other file was
// installed.
type LoadError struct {
	Errors map[string]error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	paths := make([]string, 0, len(e.Errors))
	for p := range e.Errors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) == 1 {
		return fmt.Sprintf("load failed for %s: %v", paths[0], e.Errors[paths[0]])
	}
	return fmt.Sprintf("load failed for %d files (first %s: %v)", len(paths), paths[0], e.Errors[paths[0]])
}

// ProgramOption configures a Program.
type ProgramOption func(*Program)

// WithParser replaces the default TypeScriptParser.
func WithParser(parser Parser) ProgramOption {
	return func(p *Program) {
		if parser != nil {
			p.parser = parser
		}
	}
}

// WithWorkers bounds the number of concurrent parses in LoadFiles.
func WithWorkers(n int) ProgramOption {
	return func(p *Program) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithProgramLogger sets the logger. Nil is ignored.
func WithProgramLogger(logger *slog.Logger) ProgramOption {
	return func(p *Program) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Program is the set of parsed files the resolver works over.
//
// Description:
//
//	A Program owns parsed Files and answers the host questions the resolver
//	asks: what an identifier refers to, what a call invokes, what a class
//	extends, and what members a class type has. Every time a file is added
//	or replaced it receives a new generation number; caches use
//	Generation(path) to detect stale entries.
//
// Thread Safety:
//
//	Safe for concurrent use. Files are immutable; replacing a file swaps the
//	pointer under a write lock.
type Program struct {
	mu         sync.RWMutex
	parser     Parser
	workers    int
	logger     *slog.Logger
	files      map[string]*File
	byName     map[string][]*Node
	generation uint64
}

// NewProgram creates an empty Program.
func NewProgram(opts ...ProgramOption) *Program {
	p := &Program{
		parser:  NewTypeScriptParser(),
		workers: DefaultWorkers,
		logger:  slog.Default(),
		files:   make(map[string]*File),
		byName:  make(map[string][]*Node),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NormalizePath cleans a path and converts it to forward slashes.
func NormalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// LoadFiles reads and parses the given files concurrently.
//
// Description:
//
//	Parsing runs on up to the configured number of workers. A failure to
//	read or parse one file does not stop the others; failures are returned
//	together as a *LoadError after every successful file is installed.
//
// Inputs:
//   - ctx: Context for cancellation. Cancellation aborts the load and
//     installs nothing.
//   - paths: Files to load. Paths are normalized with NormalizePath.
//
// Outputs:
//   - error: nil, a *LoadError, or a context error.
func (p *Program) LoadFiles(ctx context.Context, paths []string) error {
	ctx, span := tracer.Start(ctx, "Program.LoadFiles",
		trace.WithAttributes(attribute.Int("files", len(paths))),
	)
	defer span.End()
	start := time.Now()

	type result struct {
		path string
		file *File
		err  error
	}

	results := make(chan result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, path := range paths {
		path := NormalizePath(path)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				results <- result{path: path, err: fmt.Errorf("reading: %w", err)}
				return nil
			}
			file, err := p.parser.Parse(gctx, content, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				results <- result{path: path, err: err}
				return nil
			}
			results <- result{path: path, file: file}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading program: %w", err)
	}
	close(results)

	loadErr := &LoadError{Errors: make(map[string]error)}
	var parsed []*File
	for r := range results {
		if r.err != nil {
			p.logger.Warn("file skipped",
				slog.String("file", r.path),
				slog.String("error", r.err.Error()),
			)
			loadErr.Errors[r.path] = r.err
			continue
		}
		parsed = append(parsed, r.file)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Path < parsed[j].Path })

	p.mu.Lock()
	for _, f := range parsed {
		p.installLocked(f)
	}
	total := len(p.files)
	p.mu.Unlock()

	programFiles.Set(float64(total))
	span.SetAttributes(
		attribute.Int("loaded", len(parsed)),
		attribute.Int("failed", len(loadErr.Errors)),
	)
	p.logger.Info("program loaded",
		slog.Int("files", len(parsed)),
		slog.Int("failed", len(loadErr.Errors)),
		slog.Duration("duration", time.Since(start)),
	)

	if len(loadErr.Errors) > 0 {
		return loadErr
	}
	return nil
}

// AddSource parses content and installs it under path, replacing any
// previous version of the file.
func (p *Program) AddSource(ctx context.Context, path string, content []byte) (*File, error) {
	path = NormalizePath(path)
	file, err := p.parser.Parse(ctx, content, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	p.mu.Lock()
	p.installLocked(file)
	total := len(p.files)
	p.mu.Unlock()
	programFiles.Set(float64(total))
	return file, nil
}

// UpdateFile re-reads path from disk and replaces it in the program.
func (p *Program) UpdateFile(ctx context.Context, path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.AddSource(ctx, path, content)
}

// RemoveFile drops a file from the program. Returns false if it was absent.
func (p *Program) RemoveFile(path string) bool {
	path = NormalizePath(path)
	p.mu.Lock()
	defer p.mu.Unlock()
	old, ok := p.files[path]
	if !ok {
		return false
	}
	p.unindexLocked(old)
	delete(p.files, path)
	p.generation++
	programFiles.Set(float64(len(p.files)))
	return true
}

// installLocked stamps a generation on f and makes it current.
func (p *Program) installLocked(f *File) {
	if old, ok := p.files[f.Path]; ok {
		p.unindexLocked(old)
	}
	p.generation++
	f.Generation = p.generation
	p.files[f.Path] = f
	for _, d := range f.Root.Members {
		if d.Name != "" && d.Modifiers.Has(ModExported) {
			p.byName[d.Name] = append(p.byName[d.Name], d)
		}
	}
}

func (p *Program) unindexLocked(f *File) {
	for _, d := range f.Root.Members {
		if d.Name == "" || !d.Modifiers.Has(ModExported) {
			continue
		}
		nodes := p.byName[d.Name]
		kept := nodes[:0]
		for _, n := range nodes {
			if n != d {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(p.byName, d.Name)
		} else {
			p.byName[d.Name] = kept
		}
	}
}

// File returns the file at path.
func (p *Program) File(path string) (*File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.files[NormalizePath(path)]
	return f, ok
}

// FileOf returns the file that contains n, or nil if the file is no longer
// current.
func (p *Program) FileOf(n *Node) *File {
	if n == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.files[n.Location.FilePath]
}

// Files returns all files sorted by path.
func (p *Program) Files() []*File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*File, 0, len(p.files))
	for _, f := range p.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Classes returns every top-level class, ordered by file path then position.
func (p *Program) Classes() []*Node {
	var out []*Node
	for _, f := range p.Files() {
		out = append(out, f.Classes()...)
	}
	return out
}

// Generation returns the generation of the file at path, or 0 when the file
// is not part of the program.
func (p *Program) Generation(path string) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if f, ok := p.files[path]; ok {
		return f.Generation
	}
	return 0
}

// Hash returns the content hash of the file at path.
func (p *Program) Hash(path string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if f, ok := p.files[path]; ok {
		return f.Hash, true
	}
	return "", false
}

// ExportedNamed returns exported top-level declarations with the given name
// across all files.
func (p *Program) ExportedNamed(name string) []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Node(nil), p.byName[name]...)
}
