// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thinkchat/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DefaultOptions(filepath.Join(t.TempDir(), "db", "history.db")))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func streamed(role model.Role, fragments ...string) *model.Message {
	msg := model.NewMessage(role)
	for _, f := range fragments {
		msg.Ingest(f)
	}
	stats := model.NewStatistics()
	stats.RecordFirstToken()
	stats.Finalize(42)
	msg.Finalize(stats)
	return msg
}

func sampleTranscript(id string) Transcript {
	return Transcript{
		ID:    id,
		Title: "Why is the sky blue?",
		Model: "qwen3:8b",
		Messages: []*model.Message{
			model.NewTextMessage(model.RoleSystem, "Be brief."),
			model.NewTextMessage(model.RoleUser, "Why is the sky blue?"),
			streamed(model.RoleAssistant, "preamble ", "<think>Rayleigh", " scattering</think>", "Short wavelengths scatter."),
		},
	}
}

// =============================================================================
// SAVE AND LOAD
// =============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	in := sampleTranscript("sess_0001")

	changed, err := store.Save(ctx, in)
	require.NoError(t, err)
	assert.True(t, changed)

	out, err := store.Load(ctx, "sess_0001")
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, "qwen3:8b", out.Model)
	require.Len(t, out.Messages, 3)

	for i, msg := range out.Messages {
		assert.Equal(t, in.Messages[i].ID, msg.ID)
		assert.Equal(t, in.Messages[i].Role, msg.Role)
		assert.Equal(t, in.Messages[i].Content(), msg.Content(), "content is stored verbatim")
		assert.True(t, msg.IsFinalized())
	}
}

func TestStore_ReasoningRederivedOnLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	in := sampleTranscript("sess_0002")
	_, err := store.Save(ctx, in)
	require.NoError(t, err)

	out, err := store.Load(ctx, "sess_0002")
	require.NoError(t, err)

	reply := out.Messages[2]
	live := in.Messages[2]
	assert.Equal(t, live.Snapshot(), reply.Snapshot(), "stored reply classifies like the live one")

	mainText, _ := reply.MainText()
	reasoning, ok := reply.ReasoningText()
	assert.Equal(t, "Short wavelengths scatter.", mainText)
	assert.True(t, ok)
	assert.Equal(t, "Rayleigh scattering", reasoning)
}

func TestStore_OneShotMessageKeepsPreamble(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	in := Transcript{
		ID:    "sess_0003",
		Model: "qwen3:8b",
		Messages: []*model.Message{
			model.NewTextMessage(model.RoleUser, "Plan first."),
			model.NewTextMessage(model.RoleAssistant, "Sure. <think>plan</think> Done."),
			streamed(model.RoleAssistant, "Sure. ", "<think>plan</think>", " Done."),
		},
	}
	_, err := store.Save(ctx, in)
	require.NoError(t, err)

	out, err := store.Load(ctx, "sess_0003")
	require.NoError(t, err)
	require.Len(t, out.Messages, 3)

	oneShot := out.Messages[1]
	assert.True(t, oneShot.IsParsed())
	assert.Equal(t, in.Messages[1].Snapshot(), oneShot.Snapshot())
	assert.Equal(t, "Sure. Done.", oneShot.DisplayText())
	reasoning, _ := oneShot.ReasoningText()
	assert.Equal(t, "plan", reasoning)

	// The streamed reply drops its preamble live, so it does after a reload too.
	reply := out.Messages[2]
	assert.False(t, reply.IsParsed())
	assert.Equal(t, in.Messages[2].Snapshot(), reply.Snapshot())
	assert.Equal(t, " Done.", reply.DisplayText())
}

func TestStore_UpgradesVersionOneDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(DefaultOptions(path))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Put the file back the way the first schema left it.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`ALTER TABLE messages DROP COLUMN parsed`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE metadata SET value = '1' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err = Open(DefaultOptions(path))
	require.NoError(t, err)
	defer store.Close()

	var version string
	require.NoError(t, store.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&version))
	assert.Equal(t, strconv.Itoa(SchemaVersion), version)

	in := Transcript{ID: "sess_up", Messages: []*model.Message{
		model.NewTextMessage(model.RoleAssistant, "Sure. <think>plan</think> Done."),
	}}
	_, err = store.Save(context.Background(), in)
	require.NoError(t, err)
	out, err := store.Load(context.Background(), "sess_up")
	require.NoError(t, err)
	assert.Equal(t, "Sure. Done.", out.Messages[0].DisplayText())
}

func TestStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(DefaultOptions(path))
	require.NoError(t, err)
	_, err = store.db.Exec(`UPDATE metadata SET value = '99' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(DefaultOptions(path))
	assert.ErrorContains(t, err, "newer than supported")
}

func TestStore_StatisticsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	in := sampleTranscript("sess_0003")
	in.Messages[2].Stats.Cancelled = true
	_, err := store.Save(ctx, in)
	require.NoError(t, err)

	out, err := store.Load(ctx, "sess_0003")
	require.NoError(t, err)

	assert.Nil(t, out.Messages[0].Stats, "messages without stats stay without")
	got := out.Messages[2].Stats
	require.NotNil(t, got)
	want := in.Messages[2].Stats
	assert.Equal(t, want.CompletionTokens, got.CompletionTokens)
	assert.Equal(t, want.TotalDuration, got.TotalDuration)
	assert.Equal(t, want.TTFT, got.TTFT)
	assert.True(t, got.Cancelled)
}

func TestStore_SaveUnchangedIsNoop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	in := sampleTranscript("sess_0004")

	_, err := store.Save(ctx, in)
	require.NoError(t, err)

	changed, err := store.Save(ctx, in)
	require.NoError(t, err)
	assert.False(t, changed)

	in.Messages = append(in.Messages, model.NewTextMessage(model.RoleUser, "and sunsets?"))
	changed, err = store.Save(ctx, in)
	require.NoError(t, err)
	assert.True(t, changed)

	out, err := store.Load(ctx, "sess_0004")
	require.NoError(t, err)
	assert.Len(t, out.Messages, 4)
}

func TestStore_SaveRequiresID(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Save(context.Background(), Transcript{})
	assert.True(t, errors.Is(err, ErrNoID))
}

func TestStore_EmptyTitleDefaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.Save(ctx, Transcript{ID: "sess_x"})
	require.NoError(t, err)

	out, err := store.Load(ctx, "sess_x")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, out.Title)
	assert.Empty(t, out.Messages)
}

// =============================================================================
// IDS
// =============================================================================

func TestStore_ShortIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"sess_abc111", "sess_abc222", "sess_def333"} {
		_, err := store.Save(ctx, sampleTranscript(id))
		require.NoError(t, err)
	}

	id, err := store.Resolve(ctx, "def")
	require.NoError(t, err)
	assert.Equal(t, "sess_def333", id)

	id, err = store.Resolve(ctx, "sess_abc2")
	require.NoError(t, err)
	assert.Equal(t, "sess_abc222", id)

	_, err = store.Resolve(ctx, "abc")
	assert.True(t, errors.Is(err, ErrAmbiguous))

	_, err = store.Resolve(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Load(ctx, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0f8fad5b", ShortID("sess_0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, "abc", ShortID("abc"))
}

// =============================================================================
// LIST, SEARCH, DELETE
// =============================================================================

func TestStore_ListOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"sess_a", "sess_b", "sess_c"} {
		tr := sampleTranscript(id)
		tr.Updated = base.Add(time.Duration(i) * time.Minute)
		_, err := store.Save(ctx, tr)
		require.NoError(t, err)
	}

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "sess_c", list[0].ID)
	assert.Equal(t, "sess_a", list[2].ID)
	assert.Equal(t, 3, list[0].MessageCount)
	assert.Equal(t, "Why is the sky blue?", list[0].Preview)

	list, err = store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestStore_ListEmpty(t *testing.T) {
	store := openTestStore(t)
	list, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStore_Search(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, sampleTranscript("sess_sky"))
	require.NoError(t, err)

	other := Transcript{
		ID:       "sess_wifi",
		Title:    "Router setup",
		Model:    "llama3",
		Messages: []*model.Message{model.NewTextMessage(model.RoleUser, "My WiFi password keeps failing")},
	}
	_, err = store.Save(ctx, other)
	require.NoError(t, err)

	tests := []struct {
		query string
		want  []string
	}{
		{"wifi", []string{"sess_wifi"}},
		{"ＷｉＦｉ", []string{"sess_wifi"}},
		{"ROUTER", []string{"sess_wifi"}},
		{"rayleigh", []string{"sess_sky"}},
		{"nothing like this", nil},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			hits, err := store.Search(ctx, tc.query)
			require.NoError(t, err)
			var ids []string
			for _, h := range hits {
				ids = append(ids, h.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	all, err := store.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, err := store.Save(ctx, sampleTranscript("sess_gone"))
	require.NoError(t, err)

	id, err := store.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, "sess_gone", id)

	_, err = store.Load(ctx, "sess_gone")
	assert.True(t, errors.Is(err, ErrNotFound))

	hits, err := store.Search(ctx, "rayleigh")
	require.NoError(t, err)
	assert.Empty(t, hits, "messages are removed with their conversation")

	_, err = store.Delete(ctx, "sess_gone")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_MaxTranscripts(t *testing.T) {
	opts := DefaultOptions(filepath.Join(t.TempDir(), "history.db"))
	opts.MaxTranscripts = 2
	store, err := Open(opts)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"sess_1", "sess_2", "sess_3"} {
		tr := sampleTranscript(id)
		tr.Updated = base.Add(time.Duration(i) * time.Minute)
		_, err := store.Save(ctx, tr)
		require.NoError(t, err)
	}

	list, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sess_3", list[0].ID)
	assert.Equal(t, "sess_2", list[1].ID)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(DefaultOptions(path))
	require.NoError(t, err)
	_, err = store.Save(context.Background(), sampleTranscript("sess_keep"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(DefaultOptions(path))
	require.NoError(t, err)
	defer store.Close()
	out, err := store.Load(context.Background(), "sess_keep")
	require.NoError(t, err)
	assert.Len(t, out.Messages, 3)
}

// =============================================================================
// TRANSCRIPT HELPERS
// =============================================================================

func TestTranscript_Digest(t *testing.T) {
	a := sampleTranscript("sess_d")
	b := Transcript{ID: "other", Messages: a.Messages}
	assert.Equal(t, a.Digest(), b.Digest(), "digest covers messages only")

	c := Transcript{Messages: a.Messages[:2]}
	assert.NotEqual(t, a.Digest(), c.Digest())
	assert.Len(t, a.Digest(), 64)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "No saved conversations.", FormatList(nil))

	out := FormatList([]Summary{{
		ID:           "sess_0f8fad5b-d9cb-469f-a165-70867728950e",
		Title:        "Why is the sky blue?",
		Updated:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local),
		MessageCount: 3,
	}})
	assert.Contains(t, out, "0f8fad5b")
	assert.Contains(t, out, "2025-03-01 12:00")
	assert.Contains(t, out, "Why is the sky blue?")
	assert.False(t, strings.Contains(out, "d9cb"), "list shows short IDs")
}
