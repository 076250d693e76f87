// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import "strings"

// =============================================================================
// STATE
// =============================================================================

// State is the position of the reasoning sub-machine.
type State uint8

const (
	// Searching: no start tag seen yet, everything is tentatively main text.
	Searching State = iota
	// InReasoning: start tag matched, end tag not yet seen.
	InReasoning
	// DoneReasoning: end tag matched. Terminal for the reasoning block;
	// further fragments are main text.
	DoneReasoning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Searching:
		return "searching"
	case InReasoning:
		return "in_reasoning"
	case DoneReasoning:
		return "done_reasoning"
	default:
		return "unknown"
	}
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the classification of everything ingested so far.
//
// HasMain and HasReasoning distinguish "never set" from "set to empty":
// main text is unset until the first fragment arrives, and reasoning text
// is unset until a start tag is found.
type Snapshot struct {
	Main         string
	Reasoning    string
	HasMain      bool
	HasReasoning bool
	InReasoning  bool
	Tag          Tag
}

// =============================================================================
// SEGMENTER
// =============================================================================

// Segmenter classifies the fragments of one message. The zero value is ready
// to use. A Segmenter has a single owner and is not safe for concurrent use.
type Segmenter struct {
	content strings.Builder
	state   State
	tag     Tag

	// Offsets into content. bodyStart is the first byte after the start
	// tag; closeEnd is the first byte after the end tag.
	bodyStart int
	closeEnd  int

	main         strings.Builder
	reasoning    strings.Builder
	hasMain      bool
	hasReasoning bool
}

// Ingest appends fragment to the buffer and re-derives the split between
// main and reasoning text. Any string is a legal fragment; an empty one
// changes nothing.
func (sg *Segmenter) Ingest(fragment string) Snapshot {
	if fragment == "" {
		return sg.Snapshot()
	}
	sg.content.WriteString(fragment)
	full := sg.content.String()

	switch sg.state {
	case Searching:
		tag, idx, ok := findOpen(full)
		if !ok {
			sg.appendMain(fragment)
			break
		}
		sg.tag = tag
		sg.state = InReasoning
		sg.bodyStart = idx + len(tag.Open())
		// Anything before the start tag is not shown as main text.
		sg.main.Reset()
		sg.hasMain = true
		sg.scanClose(full, full[sg.bodyStart:])
	case InReasoning:
		sg.scanClose(full, fragment)
	case DoneReasoning:
		sg.appendMain(fragment)
	}

	return sg.Snapshot()
}

// scanClose looks for the end tag anywhere after the start tag. fresh is the
// reasoning text that arrived with this call.
func (sg *Segmenter) scanClose(full, fresh string) {
	closeTag := sg.tag.Close()
	rel := strings.Index(full[sg.bodyStart:], closeTag)
	if rel < 0 {
		sg.reasoning.WriteString(fresh)
		sg.hasReasoning = true
		return
	}

	end := sg.bodyStart + rel
	sg.closeEnd = end + len(closeTag)

	// Recomputed from the buffer: a split end tag left partial delimiter
	// text in the incrementally built reasoning.
	sg.reasoning.Reset()
	sg.reasoning.WriteString(full[sg.bodyStart:end])
	sg.hasReasoning = true

	sg.appendMain(full[sg.closeEnd:])
	sg.state = DoneReasoning
}

func (sg *Segmenter) appendMain(s string) {
	sg.main.WriteString(s)
	sg.hasMain = true
}

// Snapshot returns the current classification without ingesting anything.
func (sg *Segmenter) Snapshot() Snapshot {
	return Snapshot{
		Main:         sg.main.String(),
		Reasoning:    sg.reasoning.String(),
		HasMain:      sg.hasMain,
		HasReasoning: sg.hasReasoning,
		InReasoning:  sg.state == InReasoning,
		Tag:          sg.tag,
	}
}

// Content returns every fragment ingested so far, concatenated.
func (sg *Segmenter) Content() string {
	return sg.content.String()
}

// State returns the current state.
func (sg *Segmenter) State() State {
	return sg.state
}

// Tag returns the matched delimiter, or NoTag while searching.
func (sg *Segmenter) Tag() Tag {
	return sg.tag
}

// Len returns the size of the buffer in bytes.
func (sg *Segmenter) Len() int {
	return sg.content.Len()
}

// Segment classifies a complete reply as if it had arrived as one fragment.
// Unlike Parse it keeps the streaming rules exactly, untrimmed.
func Segment(text string) Snapshot {
	var sg Segmenter
	return sg.Ingest(text)
}
