// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package segment splits streamed model output into reasoning and main text.
//
// Reasoning models wrap their deliberation in a tag pair such as
// <think>...</think>. Tokens arrive in arbitrary fragments, so a tag is
// routinely split across two or more fragments ("<thi" + "nk>"). The
// Segmenter never inspects a fragment in isolation: every call to Ingest
// re-derives the split from the whole accumulated buffer, which makes the
// result independent of where fragment boundaries fall.
//
// # Key Types
//
//   - Tag: the closed set of recognised delimiter names (think, thinking, reasoning)
//   - State: Searching, InReasoning, DoneReasoning
//   - Segmenter: stateful accumulator for one message
//   - Snapshot: the classification after each fragment
//
// # Usage
//
//	var sg segment.Segmenter
//	for _, frag := range []string{"<thi", "nk>ab", "c</think>d", "ef"} {
//	    snap := sg.Ingest(frag)
//	    render(snap.Reasoning, snap.Main, snap.InReasoning)
//	}
//	// Main == "def", Reasoning == "abc"
//
// For text that is already complete, Parse applies the same tag search once
// and trims the pieces.
//
// Only one reasoning block per message is recognised. Text that precedes the
// start tag is dropped from the main text once the tag is seen; models emit
// the tag as their first tokens, and the display has always treated anything
// before it as not meant for the reader.
package segment
