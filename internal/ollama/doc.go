// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - ChatRequest: model, messages and sampling Options for /api/chat
//   - StreamChunk: one decoded line of a streaming reply
//   - ClientError: typed failure with sentinels for errors.Is
//
// # Usage
//
//	client := ollama.NewClient()
//	err := client.ChatStream(ctx, ollama.ChatRequest{
//	    Model:    "qwen3:8b",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	}, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
//
// Message content is sent exactly as stored, reasoning tags included.
package ollama
