// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import "strings"

// =============================================================================
// TAG TYPE
// =============================================================================

// Tag names a reasoning delimiter. The zero value is NoTag.
type Tag uint8

const (
	NoTag Tag = iota
	TagThink
	TagThinking
	TagReasoning
)

// Tags lists the recognised delimiters in priority order.
var Tags = [...]Tag{TagThink, TagThinking, TagReasoning}

// String returns the bare delimiter name ("think"), or "" for NoTag.
func (t Tag) String() string {
	switch t {
	case TagThink:
		return "think"
	case TagThinking:
		return "thinking"
	case TagReasoning:
		return "reasoning"
	default:
		return ""
	}
}

// Open returns the start delimiter, e.g. "<think>".
func (t Tag) Open() string {
	if t == NoTag {
		return ""
	}
	return "<" + t.String() + ">"
}

// Close returns the end delimiter, e.g. "</think>".
func (t Tag) Close() string {
	if t == NoTag {
		return ""
	}
	return "</" + t.String() + ">"
}

// findOpen returns the leftmost start delimiter in s. The delimiters cannot
// overlap (each contains a single '<'), so leftmost is well defined; equal
// offsets are impossible and priority order only matters for determinism.
func findOpen(s string) (Tag, int, bool) {
	best, bestIdx := NoTag, -1
	for _, t := range Tags {
		idx := strings.Index(s, t.Open())
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			best, bestIdx = t, idx
		}
	}
	return best, bestIdx, bestIdx >= 0
}
