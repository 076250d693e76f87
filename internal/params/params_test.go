// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package params

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thinkchat/internal/ollama"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "model_configs"))
	require.NoError(t, err)
	return s
}

func TestModelKey(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"qwen3:8b", "qwen3"},
		{"qwen3", "qwen3"},
		{"deepseek-r1:14b-qwen-distill", "deepseek-r1"},
		{"hf.co/org/model:Q4_K_M", "hf.co_org_model"},
	}
	for _, tc := range tests {
		if got := ModelKey(tc.model); got != tc.want {
			t.Errorf("ModelKey(%q) = %q, want %q", tc.model, got, tc.want)
		}
	}
}

func TestDefaults_CreatesFile(t *testing.T) {
	s := newStore(t)

	p, err := s.Defaults("qwen3:8b")
	require.NoError(t, err)
	assert.Equal(t, Builtin(), p)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "qwen3.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 0.7, raw["temperature"])
	assert.Equal(t, float64(8000), raw["num_ctx"])
	assert.Equal(t, DefaultIcon, raw["icon"])
}

func TestDefaults_SharedAcrossTags(t *testing.T) {
	s := newStore(t)

	opts := Builtin().Options
	opts.Temperature = 0.2
	ok, err := s.Update("qwen3:8b", opts)
	require.NoError(t, err)
	require.True(t, ok)

	p, err := s.Defaults("qwen3:32b")
	require.NoError(t, err)
	assert.Equal(t, 0.2, p.Temperature)
}

func TestDefaults_EmptyModel(t *testing.T) {
	s := newStore(t)
	_, err := s.Defaults("")
	assert.True(t, errors.Is(err, ErrNoModel))

	ok, err := s.Update("", ollama.Options{})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate_PreservesIcon(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetIcon("llama3.2", "🦙"))

	opts := Builtin().Options
	opts.TopK = 10
	_, err := s.Update("llama3.2:3b", opts)
	require.NoError(t, err)

	p, err := s.Defaults("llama3.2")
	require.NoError(t, err)
	assert.Equal(t, "🦙", p.Icon)
	assert.Equal(t, 10, p.TopK)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetIcon("phi4", "Φ"))
	opts := Builtin().Options
	opts.NumPredict = -1
	_, err := s.Update("phi4", opts)
	require.NoError(t, err)

	p, err := s.Reset("phi4")
	require.NoError(t, err)
	assert.Equal(t, 256, p.NumPredict)
	assert.Equal(t, "Φ", p.Icon)
}

func TestKeys(t *testing.T) {
	s := newStore(t)
	for _, m := range []string{"qwen3:8b", "gemma3:4b", "qwen3:32b"} {
		_, err := s.Defaults(m)
		require.NoError(t, err)
	}

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"gemma3", "qwen3"}, keys)
}

func TestValidate(t *testing.T) {
	o := Validate(ollama.Options{
		Temperature:   9,
		TopK:          -5,
		TopP:          0.5,
		TypicalP:      0.9,
		NumCtx:        10,
		NumPredict:    -7,
		RepeatLastN:   99999,
		RepeatPenalty: 0,
		Mirostat:      3,
		MirostatEta:   2,
		MirostatTau:   -1,
	})

	assert.Equal(t, 2.5, o.Temperature)
	assert.Equal(t, 0, o.TopK)
	assert.Equal(t, 0.5, o.TypicalP, "typical_p is capped at top_p")
	assert.Equal(t, 1000, o.NumCtx)
	assert.Equal(t, -1, o.NumPredict)
	assert.Equal(t, 4096, o.RepeatLastN)
	assert.Equal(t, 0.1, o.RepeatPenalty)
	assert.Equal(t, 2, o.Mirostat)
	assert.Equal(t, 1.0, o.MirostatEta)
	assert.Equal(t, 0.0, o.MirostatTau)

	assert.Equal(t, Builtin().Options, Validate(Builtin().Options), "defaults are in range")
}

func TestGetSet(t *testing.T) {
	o := Builtin().Options

	require.NoError(t, Set(&o, "top_k", "12"))
	require.NoError(t, Set(&o, "temperature", "1.25"))
	assert.Equal(t, 12, o.TopK)
	assert.Equal(t, 1.25, o.Temperature)

	v, err := Get(o, "num_ctx")
	require.NoError(t, err)
	assert.Equal(t, "8000", v)

	v, err = Get(o, "temperature")
	require.NoError(t, err)
	assert.Equal(t, "1.25", v)

	assert.Error(t, Set(&o, "top_k", "1.5"))
	assert.Error(t, Set(&o, "bogus", "1"))
	for _, r := range Ranges {
		_, err := Get(o, r.Name)
		assert.NoError(t, err, "every range has a field: %s", r.Name)
	}
}

func TestWatch(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 8)
	go s.Watch(ctx, 20*time.Millisecond, func(key string) { changed <- key })

	// The watcher may not be registered yet; keep writing until it sees one.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case key := <-changed:
			assert.Equal(t, "mistral", key)
			return
		case <-tick.C:
			_, err := s.Update("mistral:7b", Builtin().Options)
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}
