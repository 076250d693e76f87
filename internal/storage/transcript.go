// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/util"
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript is one saved conversation.
type Transcript struct {
	ID       string
	Title    string
	Model    string
	Created  time.Time
	Updated  time.Time
	Messages []*model.Message
}

// Summary describes a transcript without its messages.
type Summary struct {
	ID           string
	Title        string
	Model        string
	Created      time.Time
	Updated      time.Time
	MessageCount int
	Preview      string // first user message, one line
}

// Digest identifies the message content of a transcript. Two transcripts
// with the same messages in the same order have the same digest.
func (t Transcript) Digest() string {
	h, _ := blake2b.New256(nil)
	for _, msg := range t.Messages {
		h.Write([]byte(msg.ID))
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(len(msg.Content()))))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Preview returns the first user message as a single truncated line.
func (t Transcript) Preview(maxLen int) string {
	for _, msg := range t.Messages {
		if msg.Role == model.RoleUser && !msg.IsEmpty() {
			return msg.Preview(maxLen)
		}
	}
	return ""
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders summaries as a fixed-width table.
func FormatList(list []Summary) string {
	if len(list) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	rule := strings.Repeat("-", 78) + "\n"
	sb.WriteString(rule)
	sb.WriteString(util.PadWidth("ID", 10) + " " + util.PadWidth("Updated", 17) + " " +
		util.PadWidth("Msgs", 5) + " Title\n")
	sb.WriteString(rule)

	for _, s := range list {
		sb.WriteString(util.PadWidth(ShortID(s.ID), 10) + " " +
			util.PadWidth(s.Updated.Local().Format("2006-01-02 15:04"), 17) + " " +
			util.PadWidth(strconv.Itoa(s.MessageCount), 5) + " " +
			util.TruncateWidth(s.Title, 42) + "\n")
	}
	return sb.String()
}

// ShortID returns the abbreviated form of a transcript ID shown in lists.
// Load and Delete accept it.
func ShortID(id string) string {
	id = strings.TrimPrefix(id, "sess_")
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}
