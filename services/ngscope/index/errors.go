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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEntry indicates an entry failed validation.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrDuplicateEntry indicates an entry with the same ID already exists.
	ErrDuplicateEntry = errors.New("duplicate index entry")

	// ErrMaxEntriesExceeded indicates the index is at capacity.
	ErrMaxEntriesExceeded = errors.New("index capacity exceeded")
)

// BatchError aggregates the failures of a batch operation.
type BatchError struct {
	Errors []error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap returns the aggregated errors for errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}
