// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// scopeKeyPrefix namespaces scope summaries. Bump the version when the
	// summary layout changes.
	scopeKeyPrefix = "ngscope:scope:v1:"

	// DefaultScopeTTL is the default lifetime of a stored summary.
	DefaultScopeTTL = 7 * 24 * time.Hour
)

// ScopeSummary is the persisted form of a resolved module scope.
//
// Entities are referenced by class key ("path#ClassName") because node
// identities do not survive a process restart.
type ScopeSummary struct {
	ClassKey string `msgpack:"class_key"`

	Declarations            []string `msgpack:"declarations"`
	Imports                 []string `msgpack:"imports"`
	Exports                 []string `msgpack:"exports"`
	AllExportedDeclarations []string `msgpack:"all_exported_declarations"`

	FullyResolved bool `msgpack:"fully_resolved"`

	// Dependencies maps every file visited while resolving to its content
	// hash at the time.
	Dependencies map[string]string `msgpack:"dependencies"`

	ComputedAtMilli int64 `msgpack:"computed_at_milli"`
}

// HashSource reports the current content hash of a file.
type HashSource interface {
	Hash(path string) (string, bool)
}

// ScopeStore persists ScopeSummary values in BadgerDB.
//
// Description:
//
//	Summaries are msgpack-encoded under a key derived from the class key
//	and expire through BadgerDB's native TTL. A summary is only returned
//	when the content hash of every dependency file still matches.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type ScopeStore struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// OpenBadger opens a BadgerDB at dir, or an in-memory one when dir is empty.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", dir, err)
	}
	return db, nil
}

// NewScopeStore creates a store on an opened DB. The caller owns db.
//
// Inputs:
//
//	db - An opened BadgerDB instance. Must not be nil.
//	ttl - Lifetime of each summary. Zero or negative uses DefaultScopeTTL.
//	logger - Logger for diagnostic output. Nil uses slog.Default().
func NewScopeStore(db *badger.DB, ttl time.Duration, logger *slog.Logger) (*ScopeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("badger db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultScopeTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScopeStore{db: db, ttl: ttl, logger: logger}, nil
}

// Save stores summary, replacing any previous summary for the same class.
func (s *ScopeStore) Save(ctx context.Context, summary *ScopeSummary) error {
	if summary == nil || summary.ClassKey == "" {
		return fmt.Errorf("summary must have a class key")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.ComputedAtMilli == 0 {
		summary.ComputedAtMilli = time.Now().UnixMilli()
	}

	raw, err := msgpack.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding scope summary: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(scopeKey(summary.ClassKey), raw).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("writing scope summary: %w", err)
	}

	s.logger.Debug("scope summary saved",
		slog.String("class", summary.ClassKey),
		slog.Int("dependencies", len(summary.Dependencies)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// Load returns the stored summary for classKey.
//
// Outputs:
//
//	*ScopeSummary - The summary, or nil on a miss: absent, expired, or a
//	                dependency whose content hash changed.
//	error - Non-nil on storage or decode failure only.
func (s *ScopeStore) Load(ctx context.Context, classKey string, hashes HashSource) (*ScopeSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var summary ScopeSummary
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(scopeKey(classKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &summary)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading scope summary for %s: %w", classKey, err)
	}

	for path, hash := range summary.Dependencies {
		if current, ok := hashes.Hash(path); !ok || current != hash {
			s.logger.Debug("scope summary stale",
				slog.String("class", classKey),
				slog.String("file", path),
			)
			return nil, nil
		}
	}
	return &summary, nil
}

// Delete removes the summary for classKey.
func (s *ScopeStore) Delete(ctx context.Context, classKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(scopeKey(classKey))
	})
	if err != nil {
		return fmt.Errorf("deleting scope summary for %s: %w", classKey, err)
	}
	return nil
}

func scopeKey(classKey string) []byte {
	sum := sha256.Sum256([]byte(classKey))
	return []byte(scopeKeyPrefix + hex.EncodeToString(sum[:16]))
}
