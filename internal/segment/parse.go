// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import "strings"

// Parse classifies text that is already complete, e.g. a stored or
// non-streamed reply. The pieces are trimmed:
//
//   - no start tag: the whole text is main
//   - text before the start tag is main
//   - text between the tags is reasoning
//   - text after the end tag is joined to main with a single space
//
// A start tag without an end tag leaves InReasoning set and everything after
// the start tag as reasoning, matching what Ingest reports for the same text.
func Parse(text string) Snapshot {
	tag, idx, ok := findOpen(text)
	if !ok {
		return Snapshot{Main: strings.TrimSpace(text), HasMain: true}
	}

	snap := Snapshot{
		Tag:          tag,
		HasMain:      true,
		HasReasoning: true,
	}
	pre := strings.TrimSpace(text[:idx])
	body := text[idx+len(tag.Open()):]

	end := strings.Index(body, tag.Close())
	if end < 0 {
		snap.Main = pre
		snap.Reasoning = strings.TrimSpace(body)
		snap.InReasoning = true
		return snap
	}

	snap.Reasoning = strings.TrimSpace(body[:end])
	snap.Main = joinNonEmpty(pre, strings.TrimSpace(body[end+len(tag.Close()):]))
	return snap
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
