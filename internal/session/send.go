// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/segment"
)

// CursorGlyph marks the growing end of a streaming reply.
const CursorGlyph = "▌"

// =============================================================================
// INTERFACES
// =============================================================================

// Source streams a chat reply. *ollama.Client satisfies it.
type Source interface {
	ChatStream(ctx context.Context, req ollama.ChatRequest, callback ollama.StreamCallback) error
}

// Sink receives the progress of one streaming reply. Update is called after
// every fragment, Done exactly once when the stream ends for any reason.
// Both are called from the goroutine running Send.
type Sink interface {
	Update(snap segment.Snapshot)
	Done(snap segment.Snapshot)
}

// SinkFuncs adapts plain functions to a Sink. Nil fields are skipped.
type SinkFuncs struct {
	OnUpdate func(segment.Snapshot)
	OnDone   func(segment.Snapshot)
}

// Update implements Sink.
func (f SinkFuncs) Update(snap segment.Snapshot) {
	if f.OnUpdate != nil {
		f.OnUpdate(snap)
	}
}

// Done implements Sink.
func (f SinkFuncs) Done(snap segment.Snapshot) {
	if f.OnDone != nil {
		f.OnDone(snap)
	}
}

// WithCursor returns snap with CursorGlyph appended to whichever part is
// growing: the reasoning while the block is open, the main text otherwise.
func WithCursor(snap segment.Snapshot) segment.Snapshot {
	if snap.InReasoning {
		snap.Reasoning += CursorGlyph
		snap.HasReasoning = true
	} else {
		snap.Main += CursorGlyph
		snap.HasMain = true
	}
	return snap
}

// =============================================================================
// SEND
// =============================================================================

// Send logs prompt as a user message, streams the model's reply into a new
// assistant message and logs that too.
//
// If ctx is cancelled the partial reply is finalized with Stats.Cancelled
// set, logged, and returned with a nil error. An upstream failure returns the
// error together with whatever arrived before it; a non-empty partial reply
// is logged. sink may be nil.
func (s *Session) Send(ctx context.Context, prompt string, sink Sink) (*model.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.model == "" {
		s.mu.Unlock()
		return nil, ErrNoModel
	}
	s.busy = true
	req := ollama.ChatRequest{
		Model:     s.model,
		Options:   s.params,
		KeepAlive: s.keepAlive,
	}
	logger := s.logger.With("model", s.model)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if err := s.log(model.NewTextMessage(model.RoleUser, prompt)); err != nil {
		return nil, err
	}
	req.Messages = s.History().ToOllamaMessages()

	reply := model.NewMessage(model.RoleAssistant)
	stats := model.NewStatistics()
	logger.Debug("streaming reply", "messages", len(req.Messages))

	err := s.source.ChatStream(ctx, req, func(chunk ollama.StreamChunk) {
		if chunk.Content != "" {
			stats.RecordFirstToken()
			sink.Update(reply.Ingest(chunk.Content))
		}
		if chunk.Done {
			stats.PromptTokens = chunk.PromptTokens
			stats.CompletionTokens = chunk.CompletionTokens
		}
	})

	cancelled := ctx.Err() != nil && (err == nil || errors.Is(err, ctx.Err()))
	if cancelled {
		stats.Cancelled = true
		err = nil
	}
	if stats.CompletionTokens == 0 {
		stats.CompletionTokens = reply.EstimateTokens()
	}
	stats.Finalize(0)
	reply.Finalize(stats)
	sink.Done(reply.Snapshot())

	if err != nil {
		logger.Warn("stream failed", "error", err, "received", len(reply.Content()))
		if !reply.IsEmpty() {
			if logErr := s.log(reply); logErr != nil {
				return reply, errors.Join(err, logErr)
			}
		}
		return reply, err
	}

	if logErr := s.log(reply); logErr != nil {
		return reply, logErr
	}
	logger.Info("reply complete",
		"tokens", stats.CompletionTokens,
		"duration", stats.TotalDuration,
		"cancelled", stats.Cancelled,
		"reasoning", reply.ReasoningTag().String())
	return reply, nil
}
