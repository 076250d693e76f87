// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/segment"
)

var _ Source = (*ollama.Client)(nil)

// fakeSource replays fragments and records the request it was given.
type fakeSource struct {
	fragments []string
	tokens    int
	err       error
	// before, if set, runs before fragment i is delivered.
	before func(ctx context.Context, i int) error

	mu  sync.Mutex
	req ollama.ChatRequest
}

func (f *fakeSource) ChatStream(ctx context.Context, req ollama.ChatRequest, cb ollama.StreamCallback) error {
	f.mu.Lock()
	f.req = req
	f.mu.Unlock()

	for i, frag := range f.fragments {
		if f.before != nil {
			if err := f.before(ctx, i); err != nil {
				return err
			}
		}
		cb(ollama.StreamChunk{Content: frag})
	}
	if f.err != nil {
		return f.err
	}
	cb(ollama.StreamChunk{Done: true, CompletionTokens: f.tokens, PromptTokens: 7})
	return nil
}

func (f *fakeSource) request() ollama.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.req
}

// recordingSink keeps every snapshot it is given.
type recordingSink struct {
	updates []segment.Snapshot
	done    []segment.Snapshot
}

func (r *recordingSink) Update(s segment.Snapshot) { r.updates = append(r.updates, s) }
func (r *recordingSink) Done(s segment.Snapshot)   { r.done = append(r.done, s) }

// =============================================================================
// SEND
// =============================================================================

func TestSend_StreamsAndLogs(t *testing.T) {
	src := &fakeSource{fragments: []string{"<thi", "nk>ab", "c</think>", "def"}, tokens: 4}
	sess := New(src, Options{Model: "qwen3:8b"})
	sink := &recordingSink{}

	reply, err := sess.Send(context.Background(), "question", sink)
	require.NoError(t, err)

	main, _ := reply.MainText()
	reasoning, _ := reply.ReasoningText()
	assert.Equal(t, "def", main)
	assert.Equal(t, "abc", reasoning)
	assert.True(t, reply.IsFinalized())
	assert.Equal(t, "<think>abc</think>def", reply.Content())

	require.Len(t, sink.updates, 4, "one update per fragment")
	assert.Equal(t, "<thi", sink.updates[0].Main)
	assert.True(t, sink.updates[1].InReasoning)
	require.Len(t, sink.done, 1)
	assert.Equal(t, reply.Snapshot(), sink.done[0])

	msgs := sess.History().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "question", msgs[0].Content())
	assert.Same(t, reply, msgs[1])

	require.NotNil(t, reply.Stats)
	assert.Equal(t, 4, reply.Stats.CompletionTokens)
	assert.Equal(t, 7, reply.Stats.PromptTokens)
	assert.False(t, reply.Stats.Cancelled)
	assert.True(t, sess.IsDirty())
	assert.False(t, sess.Busy())
}

func TestSend_RequestCarriesHistory(t *testing.T) {
	src := &fakeSource{fragments: []string{"<think>x</think>first"}}
	params := &ollama.Options{Temperature: 0.3, NumCtx: 4096}
	sess := New(src, Options{Model: "m", Params: params, KeepAlive: "10m"})
	require.NoError(t, sess.SetSystemMessage("Be brief."))

	_, err := sess.Send(context.Background(), "one", nil)
	require.NoError(t, err)
	src.fragments = []string{"second"}
	_, err = sess.Send(context.Background(), "two", nil)
	require.NoError(t, err)

	req := src.request()
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, "10m", req.KeepAlive)
	assert.Same(t, params, req.Options)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, ollama.Message{Role: "system", Content: "Be brief."}, req.Messages[0])
	assert.Equal(t, ollama.Message{Role: "assistant", Content: "<think>x</think>first"}, req.Messages[2],
		"earlier replies are sent back with their reasoning tags")
	assert.Equal(t, ollama.Message{Role: "user", Content: "two"}, req.Messages[3])
}

func TestSend_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{fragments: []string{"<think>plan", " more", "never"}}
	src.before = func(ctx context.Context, i int) error {
		if i == 2 {
			cancel()
			return fmt.Errorf("read: %w", ctx.Err())
		}
		return nil
	}
	sess := New(src, Options{Model: "m"})
	sink := &recordingSink{}

	reply, err := sess.Send(ctx, "go", sink)
	require.NoError(t, err, "cancellation is not an error")

	reasoning, _ := reply.ReasoningText()
	assert.Equal(t, "plan more", reasoning)
	assert.True(t, reply.InReasoning(), "an unfinished block stays open")
	assert.True(t, reply.Stats.Cancelled)
	assert.Len(t, sink.done, 1)

	msgs := sess.History().Messages()
	require.Len(t, msgs, 2, "the partial reply is kept")
	assert.Same(t, reply, msgs[1])
}

func TestSend_UpstreamError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{fragments: []string{"partial"}, err: boom}
	sess := New(src, Options{Model: "m"})
	sink := &recordingSink{}

	reply, err := sess.Send(context.Background(), "go", sink)
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, reply)
	assert.Equal(t, "partial", reply.Content())
	assert.False(t, reply.Stats.Cancelled)
	assert.Len(t, sink.done, 1)
	assert.Equal(t, 2, sess.History().Len(), "the partial reply is logged")
}

func TestSend_UpstreamErrorBeforeAnyText(t *testing.T) {
	src := &fakeSource{err: ollama.ErrModelNotFound}
	sess := New(src, Options{Model: "missing"})

	reply, err := sess.Send(context.Background(), "go", nil)
	assert.True(t, ollama.IsModelNotFound(err))
	assert.True(t, reply.IsEmpty())
	assert.Equal(t, 1, sess.History().Len(), "only the prompt is logged")
}

func TestSend_Rejects(t *testing.T) {
	sess := New(&fakeSource{}, Options{Model: "m"})

	_, err := sess.Send(context.Background(), "  \n", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	noModel := New(&fakeSource{}, Options{})
	_, err = noModel.Send(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrNoModel)

	assert.Equal(t, 0, sess.History().Len())
	assert.Equal(t, 0, noModel.History().Len())
}

func TestSend_Busy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	src := &fakeSource{fragments: []string{"a", "b"}}
	src.before = func(ctx context.Context, i int) error {
		if i == 0 {
			close(started)
			<-release
		}
		return nil
	}
	sess := New(src, Options{Model: "m"})

	done := make(chan error, 1)
	go func() {
		_, err := sess.Send(context.Background(), "first", nil)
		done <- err
	}()

	<-started
	assert.True(t, sess.Busy())
	_, err := sess.Send(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, sess.Busy())
	assert.Equal(t, 2, sess.History().Len())
}

// =============================================================================
// HISTORY OPERATIONS
// =============================================================================

func TestClearChat_KeepsSystemMessages(t *testing.T) {
	sess := New(&fakeSource{fragments: []string{"ok"}}, Options{Model: "m"})
	require.NoError(t, sess.SetSystemMessage("first rule"))
	_, err := sess.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.NoError(t, sess.SetSystemMessage("second rule"))

	before := sess.History()
	sess.MarkClean()
	sess.ClearChat()

	msgs := sess.History().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first rule", msgs[0].Content())
	assert.Equal(t, "second rule", msgs[1].Content())
	assert.Equal(t, 4, before.Len(), "the old history is not rewritten")
	assert.Equal(t, "second rule", sess.SystemMessage())
	assert.True(t, sess.IsDirty())
}

func TestMirror(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	sess := New(&fakeSource{fragments: []string{"<think>hm</think>", "Hi!"}}, Options{Model: "m", Mirror: &buf})
	assert.True(t, sess.Mirroring())

	_, err := sess.Send(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, "\n[USER]\nhello\n\n[ASSISTANT]\n<think>\nhm\nHi!\n", buf.String())

	sess.SetMirror(nil)
	assert.False(t, sess.Mirroring())
	_, err = sess.Send(context.Background(), "again", nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "again")

	var dump bytes.Buffer
	sess.DumpMessages(&dump)
	assert.Equal(t, 4, strings.Count(dump.String(), "\n["))
}

func TestWithCursor(t *testing.T) {
	open := WithCursor(segment.Snapshot{Reasoning: "thinking", HasReasoning: true, InReasoning: true, HasMain: true})
	assert.Equal(t, "thinking"+CursorGlyph, open.Reasoning)
	assert.Equal(t, "", open.Main)

	closed := WithCursor(segment.Snapshot{Main: "answer", HasMain: true, Reasoning: "r", HasReasoning: true})
	assert.Equal(t, "answer"+CursorGlyph, closed.Main)
	assert.Equal(t, "r", closed.Reasoning)

	empty := WithCursor(segment.Snapshot{})
	assert.Equal(t, CursorGlyph, empty.Main)
	assert.True(t, empty.HasMain)
}

func TestSinkFuncs_NilSafe(t *testing.T) {
	var s SinkFuncs
	s.Update(segment.Snapshot{})
	s.Done(segment.Snapshot{})

	var got string
	s.OnUpdate = func(snap segment.Snapshot) { got = snap.Main }
	s.Update(segment.Snapshot{Main: "x"})
	assert.Equal(t, "x", got)
}

// =============================================================================
// SETTINGS AND PERSISTENCE
// =============================================================================

func TestSettings(t *testing.T) {
	sess := New(&fakeSource{}, Options{Model: "a"})
	assert.Equal(t, "🤖", sess.Icon())
	assert.Equal(t, DefaultAvatar, sess.Avatar())
	assert.True(t, strings.HasPrefix(sess.ID(), "sess_"))

	p := &ollama.Options{Temperature: 0.9}
	sess.SetModel("b", p, "🦙")
	assert.Equal(t, "b", sess.Model())
	assert.Equal(t, "🦙", sess.Icon())

	got := sess.Params()
	got.Temperature = 0.1
	assert.Equal(t, 0.9, sess.Params().Temperature, "Params returns a copy")

	sess.SetParams(nil)
	assert.Nil(t, sess.Params())

	sess.SetAvatar(Avatars[2])
	assert.Equal(t, "🤪", sess.Avatar())
}

func TestTranscriptAndResume(t *testing.T) {
	sess := New(&fakeSource{fragments: []string{"<think>r</think>a"}}, Options{Model: "m"})
	_, err := sess.Send(context.Background(), "What is up?", nil)
	require.NoError(t, err)

	tr := sess.Transcript()
	assert.Equal(t, sess.ID(), tr.ID)
	assert.Equal(t, "What is up?", tr.Title)
	assert.Equal(t, "m", tr.Model)
	assert.Len(t, tr.Messages, 2)

	resumed, err := Resume(&fakeSource{fragments: []string{"b"}}, tr, Options{})
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), resumed.ID())
	assert.Equal(t, "m", resumed.Model())
	assert.Equal(t, 2, resumed.History().Len())
	assert.False(t, resumed.IsDirty())

	_, err = resumed.Send(context.Background(), "more", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, resumed.History().Len())
}

// =============================================================================
// END TO END
// =============================================================================

func TestSend_OllamaClient(t *testing.T) {
	var got ollama.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, frag := range []string{"<reason", "ing>check", "</reasoning>", "Done."} {
			fmt.Fprintf(w, `{"model":"m","message":{"role":"assistant","content":%q},"done":false}`+"\n", frag)
		}
		fmt.Fprint(w, `{"model":"m","message":{"role":"assistant","content":""},"done":true,"eval_count":5,"prompt_eval_count":3}`+"\n")
	}))
	defer srv.Close()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
	sess := New(client, Options{Model: "m"})

	reply, err := sess.Send(context.Background(), "check it", nil)
	require.NoError(t, err)

	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "check it", got.Messages[0].Content)

	main, _ := reply.MainText()
	reasoning, _ := reply.ReasoningText()
	assert.Equal(t, "Done.", main)
	assert.Equal(t, "check", reasoning)
	assert.Equal(t, segment.TagReasoning, reply.ReasoningTag())
	assert.Equal(t, 5, reply.Stats.CompletionTokens)
}
