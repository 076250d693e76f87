// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		msg  Message
		role string
	}{
		{NewUserMessage("Hello"), "user"},
		{NewAssistantMessage("<think>x</think>y"), "assistant"},
		{NewSystemMessage("You are a helpful assistant"), "system"},
	}
	for _, tc := range tests {
		if tc.msg.Role != tc.role {
			t.Errorf("Role = %q, want %q", tc.msg.Role, tc.role)
		}
	}
}

// =============================================================================
// RESPONSE HELPER TESTS
// =============================================================================

func TestChatResponse_TokensPerSecond(t *testing.T) {
	tests := []struct {
		name         string
		evalCount    int
		evalDuration int64
		expected     float64
	}{
		{"normal", 100, 2_000_000_000, 50.0},
		{"zero duration", 100, 0, 0},
		{"fast", 500, 1_000_000_000, 500.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := &ChatResponse{EvalCount: tc.evalCount, EvalDuration: tc.evalDuration}
			if got := resp.TokensPerSecond(); got != tc.expected {
				t.Errorf("TokensPerSecond() = %f, want %f", got, tc.expected)
			}
		})
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tc := range tests {
		m := &ModelInfo{Size: tc.size}
		if got := m.FormatSize(); got != tc.expected {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.expected)
		}
	}
}

func TestOptions_WireNames(t *testing.T) {
	opts := Options{TypicalP: 0.4, RepeatLastN: 128, Mirostat: 2, MirostatEta: 0.1, MirostatTau: 4}
	data, err := json.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"typical_p":0.4`, `"repeat_last_n":128`, `"mirostat":2`, `"mirostat_eta":0.1`, `"mirostat_tau":4`, `"temperature":0`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded options %s missing %s", data, key)
		}
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
}

func TestCheckRunning(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	if err := c.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() = %v", err)
	}
}

func TestCheckRunning_NotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	err := c.CheckRunning(context.Background())
	if !IsNotRunning(err) {
		t.Errorf("CheckRunning() = %v, want not running", err)
	}
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"qwen3:8b","size":5200000000,"details":{"family":"qwen3","parameter_size":"8.2B"}},{"name":"llama3.2:latest"}]}`)
	}))

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error: %v", err)
	}
	if len(models) != 2 || models[0].Name != "qwen3:8b" {
		t.Fatalf("ListModels() = %+v", models)
	}
	if models[0].Details.ParameterSize != "8.2B" {
		t.Errorf("ParameterSize = %q", models[0].Details.ParameterSize)
	}
}

func TestShowModel_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))

	_, err := c.ShowModel(context.Background(), "nope")
	if !IsModelNotFound(err) {
		t.Fatalf("ShowModel() = %v, want model not found", err)
	}
	if !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Errorf("error should carry the server message, got %q", err)
	}
}

// streamHandler writes one NDJSON line per fragment, then a done line.
func streamHandler(t *testing.T, got *ChatRequest, fragments ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		flusher := w.(http.Flusher)
		enc := json.NewEncoder(w)
		for _, f := range fragments {
			enc.Encode(ChatResponse{Model: got.Model, Message: Message{Role: "assistant", Content: f}})
			flusher.Flush()
		}
		enc.Encode(ChatResponse{Model: got.Model, Done: true, DoneReason: "stop", EvalCount: len(fragments), EvalDuration: int64(time.Second)})
	}
}

func TestChatStream(t *testing.T) {
	var req ChatRequest
	c := newTestClient(t, streamHandler(t, &req, "<thi", "nk>ab", "c</think>d", "ef"))

	var chunks []StreamChunk
	err := c.ChatStream(context.Background(), ChatRequest{
		Model:    "qwen3:8b",
		Messages: []Message{NewUserMessage("hi")},
		Options:  &Options{Temperature: 0.7, TopK: 40},
	}, func(chunk StreamChunk) {
		chunks = append(chunks, chunk)
	})
	if err != nil {
		t.Fatalf("ChatStream() error: %v", err)
	}

	if !req.Stream {
		t.Error("request should have stream=true")
	}
	if req.Options == nil || req.Options.TopK != 40 {
		t.Errorf("options not sent: %+v", req.Options)
	}

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	if sb.String() != "<think>abc</think>def" {
		t.Errorf("reassembled = %q", sb.String())
	}

	last := chunks[len(chunks)-1]
	if !last.Done || last.CompletionTokens != 4 || last.Model != "qwen3:8b" {
		t.Errorf("final chunk = %+v", last)
	}
}

func TestChatStream_MidStreamError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"par"}}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"error":"model runner crashed"}`)
	}))

	var got string
	err := c.ChatStream(context.Background(), ChatRequest{Model: "m"}, func(chunk StreamChunk) {
		got += chunk.Content
	})

	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeServer {
		t.Fatalf("ChatStream() = %v, want server error", err)
	}
	if got != "par" {
		t.Errorf("content before the error = %q, want %q", got, "par")
	}
}

func TestChatStream_Cancelled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"<think>"}}`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := c.ChatStream(ctx, ChatRequest{Model: "m"}, func(chunk StreamChunk) {
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ChatStream() = %v, want context.Canceled", err)
	}
}

func TestChatStreamChan(t *testing.T) {
	var req ChatRequest
	c := newTestClient(t, streamHandler(t, &req, "a", "b"))

	var content string
	var done bool
	for chunk := range c.ChatStreamChan(context.Background(), ChatRequest{Model: "m"}) {
		if chunk.Error != nil {
			t.Fatalf("chunk error: %v", chunk.Error)
		}
		content += chunk.Content
		done = chunk.Done
	}
	if content != "ab" || !done {
		t.Errorf("content = %q done = %v", content, done)
	}
}

func TestChat_NonStreaming(t *testing.T) {
	var req ChatRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		fmt.Fprint(w, `{"model":"m","message":{"role":"assistant","content":"<think>r</think>a"},"done":true}`)
	}))

	resp, err := c.Chat(context.Background(), ChatRequest{Model: "m", Stream: true})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if req.Stream {
		t.Error("Chat should force stream=false")
	}
	if resp.Message.Content != "<think>r</think>a" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

func TestClientError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ClientError{Type: ErrTypeTimeout, Message: "slow"})
	if !IsTimeout(err) {
		t.Error("IsTimeout should match any timeout ClientError")
	}
	if IsNotRunning(err) {
		t.Error("IsNotRunning should not match a timeout")
	}
}
