// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thinkchat/internal/config"
	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// scriptedInput replays lines, then reports end of input.
type scriptedInput struct {
	lines   []string
	prompts []string
	closed  bool
}

func (s *scriptedInput) ReadInput(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) Close() { s.closed = true }

type replHarness struct {
	env    *testEnv
	app    *app
	repl   *repl
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestRepl(t *testing.T, fragments []string, lines ...string) *replHarness {
	t.Helper()
	env := newTestEnv(t, fragments...)

	cfg := config.Default()
	require.NoError(t, cfg.SetDefaults())
	cfg.Ollama.URL = env.server.URL
	a := &app{cfg: cfg}

	store, err := a.openStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sess, err := a.newSession("qwen3:8b")
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	r := &repl{
		app:      a,
		sess:     sess,
		store:    store,
		in:       &scriptedInput{lines: lines},
		out:      &out,
		errOut:   &errOut,
		theme:    styles.NewTheme(styles.NewRenderer(&out), "dark"),
		autoSave: true,
	}
	return &replHarness{env: env, app: a, repl: r, out: &out, errOut: &errOut}
}

func TestREPL_SendAndAutoSave(t *testing.T) {
	h := newTestRepl(t, []string{"<think>", "plan", "</think>", "\n\nThe answer."},
		"hello there", "/save", "/quit")

	require.NoError(t, h.repl.run(context.Background()))

	assert.Contains(t, h.out.String(), "qwen3:8b", "welcome names the model")
	assert.Contains(t, h.out.String(), "The answer.")
	assert.NotContains(t, h.out.String(), "plan", "reasoning is hidden by default")
	assert.Contains(t, h.out.String(), "Already saved", "the reply was saved automatically")
	assert.Empty(t, h.errOut.String())

	list, err := h.repl.store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hello there", list[0].Title)
	assert.Equal(t, 2, list[0].MessageCount)

	req := h.env.fake.lastRequest(t)
	assert.Equal(t, "qwen3:8b", req.Model)
}

func TestREPL_ShowsReasoning(t *testing.T) {
	h := newTestRepl(t, []string{"<think>", "plan", "</think>", "answer"}, "/reasoning", "q", "exit")

	require.NoError(t, h.repl.run(context.Background()))
	assert.Contains(t, h.out.String(), "Reasoning on")
	assert.Contains(t, h.out.String(), "plan")
	assert.Contains(t, h.out.String(), "answer")
}

func TestREPL_Commands(t *testing.T) {
	h := newTestRepl(t, []string{"ok"},
		"/help",
		"/system Be brief",
		"/system",
		"/params temperature=0.3",
		"/model llama3.2",
		"/model",
		"/stats",
		"/history",
		"/bogus",
		"/history -2",
	)

	require.NoError(t, h.repl.run(context.Background()))
	out := h.out.String()

	assert.Contains(t, out, "/export [FORMAT]")
	assert.Contains(t, out, "Be brief")
	assert.Equal(t, "Be brief", h.repl.sess.SystemMessage())
	assert.Contains(t, out, "Switched to llama3.2")
	assert.Equal(t, "llama3.2", h.repl.sess.Model())
	assert.Contains(t, out, "Stats on")
	assert.Contains(t, out, "No saved conversations.")

	errOut := h.errOut.String()
	assert.Contains(t, errOut, "unknown command /bogus")
	assert.Contains(t, errOut, "positive count")

	// Parameters changed in the chat are stored for the model.
	ps, err := h.app.paramsStore()
	require.NoError(t, err)
	p, err := ps.Defaults("qwen3:8b")
	require.NoError(t, err)
	assert.Equal(t, 0.3, p.Temperature)

	// Nothing was said, so nothing was saved on the way out.
	list, err := h.repl.store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestREPL_ClearAndDump(t *testing.T) {
	h := newTestRepl(t, []string{"pong"}, "ping", "/dump", "/clear", "/dump")

	require.NoError(t, h.repl.run(context.Background()))
	assert.Contains(t, h.out.String(), "Chat cleared")
	assert.Nil(t, h.repl.sess.History().LastOf(model.RoleUser))
}

func TestREPL_SendErrorKeepsGoing(t *testing.T) {
	h := newTestRepl(t, []string{"ok"}, "/model missing", "hi", "/model qwen3:8b", "again")

	require.NoError(t, h.repl.run(context.Background()))
	assert.Contains(t, h.errOut.String(), "[Error]")
	assert.Contains(t, h.errOut.String(), "ollama pull")
	assert.Contains(t, h.out.String(), "ok")
}

func TestREPL_CancelledContextEnds(t *testing.T) {
	h := newTestRepl(t, nil, "never read")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.repl.run(ctx))
	in := h.repl.in.(*scriptedInput)
	assert.Empty(t, in.prompts)
}
