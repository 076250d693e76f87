// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat transcripts in a local SQLite database.
//
// Only the raw content of each message is stored. The main/reasoning split
// is derived again when a transcript is loaded, so stored and live messages
// are always classified by the same code.
//
// # Key Types
//
//   - Store: the database handle
//   - Transcript: one saved conversation
//   - Summary: lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.Open(storage.DefaultOptions(cfg.Storage.HistoryDB))
//	defer store.Close()
//
//	changed, err := store.Save(ctx, sess.Transcript())
//	list, err := store.List(ctx, 20)
//	t, err := store.Load(ctx, list[0].ID)
//	hits, err := store.Search(ctx, "ｗｉｆｉ password")
//
// # Search
//
// Search is case-insensitive and width-insensitive: both the stored text
// and the query are NFKC-normalised and case-folded.
package storage
