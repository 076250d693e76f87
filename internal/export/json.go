// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON. Content is always included
// verbatim; main and reasoning are the derived split, omitted when unset.
type JSONExporter struct {
	options *Options
}

type jsonTranscript struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Model    string        `json:"model"`
	Created  time.Time     `json:"created"`
	Updated  time.Time     `json:"updated"`
	Messages []jsonMessage `json:"messages"`
}

type jsonMessage struct {
	ID            string     `json:"id"`
	Role          model.Role `json:"role"`
	Timestamp     time.Time  `json:"timestamp"`
	Content       string     `json:"content"`
	Main          *string    `json:"main,omitempty"`
	Reasoning     *string    `json:"reasoning,omitempty"`
	ReasoningTag  string     `json:"reasoning_tag,omitempty"`
	ReasoningOpen bool       `json:"reasoning_open,omitempty"`
	Stats         *jsonStats `json:"stats,omitempty"`
}

type jsonStats struct {
	DurationMs       int64   `json:"duration_ms"`
	TTFTMs           int64   `json:"ttft_ms"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TokensPerSecond  float64 `json:"tokens_per_sec"`
	Cancelled        bool    `json:"cancelled,omitempty"`
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to JSON format.
func (e *JSONExporter) Export(t storage.Transcript) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	out := jsonTranscript{
		ID:       t.ID,
		Title:    t.Title,
		Model:    t.Model,
		Created:  t.Created,
		Updated:  t.Updated,
		Messages: make([]jsonMessage, 0, len(t.Messages)),
	}
	for _, msg := range t.Messages {
		jm := jsonMessage{
			ID:        msg.ID,
			Role:      msg.Role,
			Timestamp: msg.Timestamp,
			Content:   msg.Content(),
		}
		if main, ok := msg.MainText(); ok {
			jm.Main = &main
		}
		if e.options.IncludeReasoning {
			if r, ok := msg.ReasoningText(); ok {
				jm.Reasoning = &r
				jm.ReasoningTag = msg.ReasoningTag().String()
				jm.ReasoningOpen = msg.InReasoning()
			}
		}
		if s := msg.Stats; s != nil {
			jm.Stats = &jsonStats{
				DurationMs:       s.TotalDuration.Milliseconds(),
				TTFTMs:           s.TTFT.Milliseconds(),
				PromptTokens:     s.PromptTokens,
				CompletionTokens: s.CompletionTokens,
				TokensPerSecond:  s.TokensPerSecond,
				Cancelled:        s.Cancelled,
			}
		}
		out.Messages = append(out.Messages, jm)
	}

	return json.MarshalIndent(out, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
