// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"sync"

	"github.com/jeranaias/thinkchat/internal/ollama"
)

// ErrNotFinalized is returned when a still-streaming message is appended.
var ErrNotFinalized = errors.New("message is still streaming")

// DefaultTitle names a conversation with no user message yet.
const DefaultTitle = "New Conversation"

// =============================================================================
// HISTORY TYPE
// =============================================================================

// History is the ordered, append-only conversation log of one session.
// Messages enter it only after they are finalized and are never edited in
// place. Clearing the chat produces a new History rather than rewriting this
// one.
//
// One writer appends; the read methods may be called from a display loop
// while that happens.
type History struct {
	mu   sync.RWMutex
	msgs []*Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{msgs: make([]*Message, 0, 16)}
}

// Append adds a finalized message to the end of the log.
func (h *History) Append(msg *Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	if !msg.IsFinalized() {
		return ErrNotFinalized
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	return nil
}

// Messages returns a copy of the log.
func (h *History) Messages() []*Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

// Last returns the most recent message, or nil if empty.
func (h *History) Last() *Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.msgs) == 0 {
		return nil
	}
	return h.msgs[len(h.msgs)-1]
}

// LastOf returns the most recent message with the given role.
func (h *History) LastOf(role Role) *Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.msgs) - 1; i >= 0; i-- {
		if h.msgs[i].Role == role {
			return h.msgs[i]
		}
	}
	return nil
}

// WithoutChat returns a new history holding only the system messages.
func (h *History) WithoutChat() *History {
	h.mu.RLock()
	defer h.mu.RUnlock()
	next := NewHistory()
	for _, msg := range h.msgs {
		if msg.Role == RoleSystem {
			next.msgs = append(next.msgs, msg)
		}
	}
	return next
}

// ToOllamaMessages converts the log to the wire format. The raw content is
// sent, reasoning included, exactly as the model produced it.
func (h *History) ToOllamaMessages() []ollama.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ollama.Message, 0, len(h.msgs))
	for _, msg := range h.msgs {
		content := msg.Content()
		if content == "" {
			continue
		}
		out = append(out, ollama.Message{Role: msg.Role.String(), Content: content})
	}
	return out
}

// EstimateTokens estimates the total token count, with ~4 tokens of
// overhead per message.
func (h *History) EstimateTokens() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, msg := range h.msgs {
		total += msg.EstimateTokens() + 4
	}
	return total
}

// Title derives a title from the first user message.
func (h *History) Title() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, msg := range h.msgs {
		if msg.Role == RoleUser {
			return msg.Preview(50)
		}
	}
	return DefaultTitle
}
