// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides name, file and kind lookups over the top-level
// declarations of a program, plus the metadata fallback used to unwrap
// module-with-providers functions whose types say nothing.
package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

const (
	// DefaultMaxEntries is the default maximum number of entries the index can hold.
	DefaultMaxEntries = 1_000_000

	// searchCheckInterval is how often Search checks for context cancellation.
	searchCheckInterval = 1000
)

// Entry is one indexed top-level declaration.
type Entry struct {
	// ID is "file_path:line:name".
	ID       string
	Name     string
	FilePath string
	Kind     ast.NodeKind
	Exported bool
	Node     *ast.Node
}

// Validate checks that the entry has the fields the index keys on.
func (e *Entry) Validate() error {
	switch {
	case e.Node == nil:
		return fmt.Errorf("entry %q has no node", e.ID)
	case e.Name == "":
		return fmt.Errorf("entry %q has no name", e.ID)
	case e.FilePath == "":
		return fmt.Errorf("entry %q has no file path", e.ID)
	}
	return nil
}

// NewEntry builds an entry for a top-level declaration of file.
func NewEntry(file *ast.File, n *ast.Node) *Entry {
	exported := false
	for _, local := range file.Exports {
		if local == n.Name {
			exported = true
			break
		}
	}
	return &Entry{
		ID:       fmt.Sprintf("%s:%d:%s", file.Path, n.Location.StartLine, n.Name),
		Name:     n.Name,
		FilePath: file.Path,
		Kind:     n.Kind,
		Exported: exported,
		Node:     n,
	}
}

// EntriesForFile returns entries for every top-level declaration of file,
// ordered by position.
func EntriesForFile(file *ast.File) []*Entry {
	entries := make([]*Entry, 0, len(file.Declarations))
	for _, n := range file.Declarations {
		entries = append(entries, NewEntry(file, n))
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Node.Location, entries[j].Node.Location
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartCol < b.StartCol
	})
	return entries
}

// Stats contains statistics about the index.
type Stats struct {
	TotalEntries int
	ByKind       map[ast.NodeKind]int
	FileCount    int
	MaxEntries   int
}

// DeclarationIndexOption configures a DeclarationIndex.
type DeclarationIndexOption func(*DeclarationIndex)

// WithMaxEntries sets the maximum number of entries the index can hold.
func WithMaxEntries(n int) DeclarationIndexOption {
	return func(idx *DeclarationIndex) {
		if n > 0 {
			idx.maxEntries = n
		}
	}
}

// DeclarationIndex provides O(1) lookups of declarations by ID, name, file
// and kind, and fuzzy search over names.
//
// Thread Safety:
//
//	Safe for concurrent use.
//
// Ownership:
//
//	The index stores pointers to entries but does NOT own them. Entries
//	MUST NOT be mutated after being added.
type DeclarationIndex struct {
	mu sync.RWMutex

	byID   map[string]*Entry
	byName map[string][]*Entry
	byFile map[string][]*Entry
	byKind map[ast.NodeKind][]*Entry

	maxEntries int
}

// NewDeclarationIndex creates an empty index.
func NewDeclarationIndex(opts ...DeclarationIndexOption) *DeclarationIndex {
	idx := &DeclarationIndex{
		byID:       make(map[string]*Entry),
		byName:     make(map[string][]*Entry),
		byFile:     make(map[string][]*Entry),
		byKind:     make(map[ast.NodeKind][]*Entry),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add adds a single entry.
//
// Errors:
//
//	ErrInvalidEntry - Entry failed validation
//	ErrDuplicateEntry - Entry with same ID already exists
//	ErrMaxEntriesExceeded - Index is at capacity
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (idx *DeclarationIndex) Add(e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.byID) >= idx.maxEntries {
		return ErrMaxEntriesExceeded
	}
	if _, exists := idx.byID[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, e.ID)
	}
	idx.addLocked(e)
	return nil
}

// AddBatch adds entries atomically: when any entry is invalid or duplicated
// nothing is added.
//
// Errors:
//
//	*BatchError - Contains all validation and duplicate errors found
//	ErrMaxEntriesExceeded - Adding the batch would exceed capacity
func (idx *DeclarationIndex) AddBatch(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var errs []error
	seen := make(map[string]int)
	for i, e := range entries {
		if e == nil {
			errs = append(errs, fmt.Errorf("entry[%d]: %w: entry is nil", i, ErrInvalidEntry))
			continue
		}
		if err := e.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry[%d]: %w: %v", i, ErrInvalidEntry, err))
			continue
		}
		if first, exists := seen[e.ID]; exists {
			errs = append(errs, fmt.Errorf("entry[%d]: %w in batch (same as entry[%d]): %s",
				i, ErrDuplicateEntry, first, e.ID))
		} else {
			seen[e.ID] = i
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.byID)+len(entries) > idx.maxEntries {
		return ErrMaxEntriesExceeded
	}
	for i, e := range entries {
		if _, exists := idx.byID[e.ID]; exists {
			errs = append(errs, fmt.Errorf("entry[%d]: %w: %s", i, ErrDuplicateEntry, e.ID))
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}

	for _, e := range entries {
		idx.addLocked(e)
	}
	return nil
}

// IndexFile replaces every entry of file.Path with the declarations of file.
func (idx *DeclarationIndex) IndexFile(file *ast.File) error {
	idx.RemoveByFile(file.Path)
	return idx.AddBatch(EntriesForFile(file))
}

func (idx *DeclarationIndex) addLocked(e *Entry) {
	idx.byID[e.ID] = e
	idx.byName[e.Name] = append(idx.byName[e.Name], e)
	idx.byFile[e.FilePath] = append(idx.byFile[e.FilePath], e)
	idx.byKind[e.Kind] = append(idx.byKind[e.Kind], e)
}

// GetByID retrieves an entry by its ID.
func (idx *DeclarationIndex) GetByID(id string) (*Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.byID[id]
	return e, ok
}

// GetByName returns a copy of the entries with the given name.
func (idx *DeclarationIndex) GetByName(name string) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byName[name])
}

// GetByFile returns a copy of the entries declared in filePath.
func (idx *DeclarationIndex) GetByFile(filePath string) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byFile[filePath])
}

// GetByKind returns a copy of the entries of the given kind.
func (idx *DeclarationIndex) GetByKind(kind ast.NodeKind) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyEntries(idx.byKind[kind])
}

// UniqueClass returns the only class declaration named name.
func (idx *DeclarationIndex) UniqueClass(name string) (*ast.Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var found *ast.Node
	for _, e := range idx.byName[name] {
		if e.Kind != ast.NodeKindClass {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = e.Node
	}
	return found, found != nil
}

func copyEntries(src []*Entry) []*Entry {
	if len(src) == 0 {
		return nil
	}
	out := make([]*Entry, len(src))
	copy(out, src)
	return out
}

// Search finds entries whose names match query.
//
// Description:
//
//	Results are sorted by relevance: exact matches first, then prefix,
//	camelCase word boundary, substring and finally fuzzy (Levenshtein)
//	matches. Ties are broken by ID for a stable order.
//
// Inputs:
//
//	ctx - Context for cancellation
//	query - Search string (case-insensitive)
//	limit - Maximum number of results to return (0 = no limit)
//
// Outputs:
//
//	[]*Entry - Matching entries sorted by relevance
//	error - Non-nil if context was cancelled
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (idx *DeclarationIndex) Search(ctx context.Context, query string, limit int) ([]*Entry, error) {
	ctx, span := startOperationSpan(ctx, "Search")
	defer span.End()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		setOperationSpanResult(span, 0, false)
		recordOperationMetrics("search", time.Since(start), false)
		return nil, err
	}
	if query == "" {
		return nil, nil
	}
	queryLower := strings.ToLower(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	type scored struct {
		entry *Entry
		score int
	}
	var results []scored
	count := 0
	for _, e := range idx.byID {
		count++
		if count%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				setOperationSpanResult(span, 0, false)
				recordOperationMetrics("search", time.Since(start), false)
				return nil, err
			}
		}
		score, _ := computeMatchScore(query, queryLower, e.Name, strings.ToLower(e.Name), e.Kind)
		if score >= 0 {
			results = append(results, scored{entry: e, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score < results[j].score
		}
		return results[i].entry.ID < results[j].entry.ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]*Entry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}

	setOperationSpanResult(span, len(out), true)
	recordOperationMetrics("search", time.Since(start), true)
	searchResults.Observe(float64(len(out)))
	return out, nil
}

// RemoveByFile removes every entry declared in filePath and returns how
// many were removed.
func (idx *DeclarationIndex) RemoveByFile(filePath string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries := idx.byFile[filePath]
	for _, e := range entries {
		delete(idx.byID, e.ID)
		if idx.byName[e.Name] = removeEntry(idx.byName[e.Name], e); len(idx.byName[e.Name]) == 0 {
			delete(idx.byName, e.Name)
		}
		if idx.byKind[e.Kind] = removeEntry(idx.byKind[e.Kind], e); len(idx.byKind[e.Kind]) == 0 {
			delete(idx.byKind, e.Kind)
		}
	}
	delete(idx.byFile, filePath)
	return len(entries)
}

// removeEntry removes e from the slice by pointer equality, preserving order.
func removeEntry(slice []*Entry, e *Entry) []*Entry {
	for i, s := range slice {
		if s == e {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}

// Clear removes all entries.
func (idx *DeclarationIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byID = make(map[string]*Entry)
	idx.byName = make(map[string][]*Entry)
	idx.byFile = make(map[string][]*Entry)
	idx.byKind = make(map[ast.NodeKind][]*Entry)
}

// Stats returns statistics about the index.
func (idx *DeclarationIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byKind := make(map[ast.NodeKind]int, len(idx.byKind))
	for k, v := range idx.byKind {
		byKind[k] = len(v)
	}
	return Stats{
		TotalEntries: len(idx.byID),
		ByKind:       byKind,
		FileCount:    len(idx.byFile),
		MaxEntries:   idx.maxEntries,
	}
}
