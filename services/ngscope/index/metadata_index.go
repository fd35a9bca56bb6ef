// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"log/slog"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

// MetadataIndex answers "which module class does this function wrap?" for
// module-with-providers functions whose signature and body do not say.
type MetadataIndex interface {
	ModuleForFunction(fn *ast.Node) (*ast.Node, bool)
}

// ClassLookup finds a class declaration by name.
type ClassLookup interface {
	UniqueClass(name string) (*ast.Node, bool)
}

// StaticMetadataIndex is a MetadataIndex backed by a fixed table of
// function key to module class name.
//
// Description:
//
//	Keys are "Class.method" for static methods and the declared name for
//	functions and arrow functions bound to a variable. Class names are
//	looked up through ClassLookup and must be unique in the program.
//
// Thread Safety:
//
//	Safe for concurrent use. The table is not modified after construction.
type StaticMetadataIndex struct {
	entries map[string]string
	classes ClassLookup
	logger  *slog.Logger
}

// StaticMetadataIndexOption configures a StaticMetadataIndex.
type StaticMetadataIndexOption func(*StaticMetadataIndex)

// WithMetadataLogger sets the logger. Nil is ignored.
func WithMetadataLogger(logger *slog.Logger) StaticMetadataIndexOption {
	return func(m *StaticMetadataIndex) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewStaticMetadataIndex creates an index over entries. The map is copied.
func NewStaticMetadataIndex(entries map[string]string, classes ClassLookup, opts ...StaticMetadataIndexOption) *StaticMetadataIndex {
	m := &StaticMetadataIndex{
		entries: make(map[string]string, len(entries)),
		classes: classes,
		logger:  slog.Default(),
	}
	for k, v := range entries {
		m.entries[k] = v
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModuleForFunction implements MetadataIndex.
func (m *StaticMetadataIndex) ModuleForFunction(fn *ast.Node) (*ast.Node, bool) {
	key := FunctionKey(fn)
	if key == "" {
		return nil, false
	}
	className, ok := m.entries[key]
	if !ok {
		metadataFallbacks.WithLabelValues("miss").Inc()
		return nil, false
	}
	cls, ok := m.classes.UniqueClass(className)
	if !ok {
		m.logger.Warn("metadata fallback names an unknown or ambiguous class",
			slog.String("function", key),
			slog.String("class", className),
		)
		metadataFallbacks.WithLabelValues("unknown_class").Inc()
		return nil, false
	}
	metadataFallbacks.WithLabelValues("hit").Inc()
	return cls, true
}

// FunctionKey returns the lookup key of a function-like node: "Class.method"
// for methods, the variable name for `const f = () => ...`, and the
// function name otherwise.
func FunctionKey(fn *ast.Node) string {
	if fn == nil {
		return ""
	}
	if fn.Name == "" && fn.Parent != nil && fn.Parent.Kind == ast.NodeKindVariable {
		return fn.Parent.Name
	}
	return fn.QualifiedName()
}

var _ MetadataIndex = (*StaticMetadataIndex)(nil)
