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

import "errors"

const (
	// DefaultMaxFileSize is the largest file the parser accepts (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize triggers a warning log for large files (1MB).
	WarnFileSize = 1024 * 1024

	// maxRawValueLen bounds the raw text kept on NodeKindOther nodes.
	maxRawValueLen = 120
)

var (
	// ErrFileTooLarge is returned when content exceeds the configured maximum size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileNotFound is returned when a path is not part of the program.
	ErrFileNotFound = errors.New("file not found")
)
