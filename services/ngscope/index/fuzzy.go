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
	"strings"

	"github.com/AleutianAI/ngscope/services/ngscope/ast"
)

// computeMatchScore scores name against query. Lower is better, -1 means
// no match.
//
// Score layout:
//
//	base*10000 + position*100 + length*10 + kind
//
// Base scores:
//
//	0 = exact (case-insensitive), 1 = prefix, 2 = camelCase word boundary,
//	3 = substring, 4 = fuzzy (Levenshtein within 30% of the query length)
func computeMatchScore(query, queryLower, name, nameLower string, kind ast.NodeKind) (int, string) {
	if nameLower == queryLower {
		return 0, "exact"
	}

	var base, pos int
	var matchType string
	switch {
	case strings.HasPrefix(nameLower, queryLower):
		base, matchType = 1, "prefix"
	case camelCaseMatch(name, query) >= 0:
		base, matchType, pos = 2, "camelCase", camelCaseMatch(name, query)
	case strings.Contains(nameLower, queryLower):
		base, matchType, pos = 3, "substring", strings.Index(nameLower, queryLower)
	default:
		threshold := max(2, len(queryLower)/3)
		if levenshtein(nameLower, queryLower) > threshold {
			return -1, "no_match"
		}
		base, matchType = 4, "fuzzy"
	}

	positionPenalty := 0
	if pos > 0 && len(name) > 0 {
		positionPenalty = min(99, pos*100/len(name))
	}
	lengthPenalty := min(99, abs(len(name)-len(query)))

	return base*10000 + positionPenalty*100 + lengthPenalty*10 + kindPenalty(kind), matchType
}

// camelCaseMatch returns the position where query matches a camelCase word
// boundary of name, or -1.
//
//	"Module" matches "CardModule" at 4
//	"card" matches "CardModule" at 0
//	"odule" does not match "CardModule"
func camelCaseMatch(name, query string) int {
	if query == "" || len(query) > len(name) {
		return -1
	}
	queryLower := strings.ToLower(query)
	for i := 0; i+len(query) <= len(name); i++ {
		boundary := i == 0 || (isUpper(name[i]) && !isUpper(name[i-1]))
		if !boundary || strings.ToLower(name[i:i+len(query)]) != queryLower {
			continue
		}
		end := i + len(query)
		if end == len(name) || isUpper(name[end]) || !isLetter(name[end]) {
			return i
		}
	}
	return -1
}

// kindPenalty prefers classes, the usual lookup target, over functions and values.
func kindPenalty(kind ast.NodeKind) int {
	switch kind {
	case ast.NodeKindClass:
		return 0
	case ast.NodeKindFunction, ast.NodeKindArrowFunction:
		return 1
	case ast.NodeKindVariable:
		return 2
	default:
		return 5
	}
}

func isUpper(c byte) bool  { return c >= 'A' && c <= 'Z' }
func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// levenshtein computes edit distance with two rolling rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
