// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/thinkchat/internal/segment"
	"github.com/jeranaias/thinkchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// ParseRole converts a wire role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one exchange unit. Content is the raw text exactly as received;
// the main/reasoning split is always derived from it.
//
// A Message has a single writer. Streaming messages are fed with Ingest and
// become immutable after Finalize.
type Message struct {
	ID        string
	Role      Role
	Timestamp time.Time

	seg       segment.Segmenter
	snap      segment.Snapshot
	finalized bool
	// parsed is set for messages built from complete text.
	parsed bool

	// Set by Finalize for assistant replies.
	Stats *Statistics
}

// NewMessage creates an empty message ready to receive streamed fragments.
func NewMessage(role Role) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Timestamp: time.Now(),
	}
}

// NewTextMessage creates a finalized message from complete text. The
// reasoning split uses the one-shot trimmed parse.
func NewTextMessage(role Role, text string) *Message {
	msg := NewMessage(role)
	msg.seg.Ingest(text)
	msg.snap = segment.Parse(text)
	msg.finalized = true
	msg.parsed = true
	return msg
}

// RestoreMessage rebuilds a stored message from its raw content. parsed
// tells how the message was built: complete text goes through the one-shot
// parse, a streamed reply is replayed through the segmenter. Either way the
// restored split matches the live one.
func RestoreMessage(id string, role Role, ts time.Time, content string, parsed bool, stats *Statistics) *Message {
	msg := &Message{ID: id, Role: role, Timestamp: ts, Stats: stats, parsed: parsed}
	msg.snap = msg.seg.Ingest(content)
	if parsed {
		msg.snap = segment.Parse(content)
	}
	msg.finalized = true
	return msg
}

// Ingest applies one streamed fragment and returns the new snapshot.
// Fragments arriving after Finalize are ignored.
func (m *Message) Ingest(fragment string) segment.Snapshot {
	if m.finalized {
		return m.snap
	}
	m.snap = m.seg.Ingest(fragment)
	return m.snap
}

// Finalize marks the stream complete. The message keeps whatever state it
// had; an unterminated reasoning block stays open.
func (m *Message) Finalize(stats *Statistics) {
	if m.finalized {
		return
	}
	m.finalized = true
	m.Stats = stats
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Content returns every fragment received, concatenated.
func (m *Message) Content() string { return m.seg.Content() }

// Snapshot returns the current classification.
func (m *Message) Snapshot() segment.Snapshot { return m.snap }

// MainText returns the answer text and whether it has been set.
func (m *Message) MainText() (string, bool) { return m.snap.Main, m.snap.HasMain }

// ReasoningText returns the reasoning text and whether it has been set.
func (m *Message) ReasoningText() (string, bool) { return m.snap.Reasoning, m.snap.HasReasoning }

// ReasoningTag returns the delimiter that opened the reasoning block.
func (m *Message) ReasoningTag() segment.Tag { return m.snap.Tag }

// InReasoning reports whether the reasoning block is still open.
func (m *Message) InReasoning() bool { return m.snap.InReasoning }

// IsParsed reports whether the message was built from complete text rather
// than streamed.
func (m *Message) IsParsed() bool { return m.parsed }

// IsFinalized reports whether the stream for this message has completed.
func (m *Message) IsFinalized() bool { return m.finalized }

// IsEmpty returns true if no text has been received.
func (m *Message) IsEmpty() bool { return m.seg.Len() == 0 }

// DisplayText returns what a reader should see as the message body: the
// main text of assistant replies, the raw content for everything else or
// when no main text exists.
func (m *Message) DisplayText() string {
	if m.Role == RoleAssistant && m.snap.HasMain {
		return m.snap.Main
	}
	return m.Content()
}

// Preview returns a truncated, single-line preview of the display text.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(util.SingleLine(m.DisplayText()), maxLen)
}

// EstimateTokens gives a rough estimate of token count (~4 bytes per token).
func (m *Message) EstimateTokens() int {
	return (m.seg.Len() + 3) / 4
}

// FormatStats returns a formatted string of message statistics.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.Stats == nil || m.Stats.TotalDuration == 0 {
		return ""
	}
	return m.Stats.Format()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func generateID() string {
	return "msg_" + uuid.NewString()
}
