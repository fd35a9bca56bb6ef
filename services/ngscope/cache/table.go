// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes resolution results keyed by node identity and
// invalidated by the generations of the files they depend on, and persists
// module scope summaries across runs.
package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ngscope",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Memo table lookups by table and outcome.",
	},
	[]string{"table", "outcome"},
)

// GenerationSource reports the current generation of a file; 0 when the
// file is not loaded.
type GenerationSource interface {
	Generation(path string) uint64
}

type tableEntry[V any] struct {
	value V
	deps  map[string]uint64
}

// Table is a memo table of V keyed by node identity.
//
// Description:
//
//	Each entry records the generation of every file owning one of its
//	dependency nodes at the time it was stored. Get returns the entry only
//	while all those files still have the recorded generation; a stale entry
//	is evicted on lookup.
//
// Thread Safety:
//
//	Safe for concurrent use. Two goroutines may compute and Put the same
//	key; the last Put wins and both values are equivalent.
type Table[V any] struct {
	name string
	gens GenerationSource

	mu      sync.RWMutex
	entries map[ast.NodeID]tableEntry[V]
}

// NewTable creates an empty table. name labels the table's metrics.
func NewTable[V any](name string, gens GenerationSource) *Table[V] {
	return &Table[V]{
		name:    name,
		gens:    gens,
		entries: make(map[ast.NodeID]tableEntry[V]),
	}
}

// Get returns the memoized value for key if it is still valid.
func (t *Table[V]) Get(key ast.NodeID) (V, bool) {
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()

	if ok && t.valid(e) {
		lookups.WithLabelValues(t.name, "hit").Inc()
		return e.value, true
	}
	if ok {
		t.mu.Lock()
		if cur, still := t.entries[key]; still && !t.valid(cur) {
			delete(t.entries, key)
		}
		t.mu.Unlock()
		lookups.WithLabelValues(t.name, "stale").Inc()
	} else {
		lookups.WithLabelValues(t.name, "miss").Inc()
	}
	var zero V
	return zero, false
}

// Put stores value under key, tagged with the files of deps.
func (t *Table[V]) Put(key ast.NodeID, value V, deps []*ast.Node) {
	stamps := make(map[string]uint64)
	for _, n := range deps {
		if n == nil {
			continue
		}
		path := n.Location.FilePath
		if _, ok := stamps[path]; !ok {
			stamps[path] = t.gens.Generation(path)
		}
	}

	t.mu.Lock()
	t.entries[key] = tableEntry[V]{value: value, deps: stamps}
	t.mu.Unlock()
}

// Invalidate removes the entry for key.
func (t *Table[V]) Invalidate(key ast.NodeID) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// Prune evicts every stale entry and returns how many were removed.
func (t *Table[V]) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, e := range t.entries {
		if !t.valid(e) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including stale ones.
func (t *Table[V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear removes every entry.
func (t *Table[V]) Clear() {
	t.mu.Lock()
	t.entries = make(map[ast.NodeID]tableEntry[V])
	t.mu.Unlock()
}

func (t *Table[V]) valid(e tableEntry[V]) bool {
	for path, gen := range e.deps {
		if current := t.gens.Generation(path); current == 0 || current != gen {
			return false
		}
	}
	return true
}
