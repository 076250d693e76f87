// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package params stores per-model sampling defaults.
//
// Each model family gets one JSON file, <dir>/<key>.json, where the key is
// the model name without its ":tag" suffix, so "qwen3:8b" and "qwen3:32b"
// share "qwen3.json". A missing file is created from the built-in defaults
// on first use. The file also records an avatar icon that survives updates.
//
// # Usage
//
//	store, err := params.NewStore(dir)
//	p, err := store.Defaults("qwen3:8b")
//	p.Temperature = 0.2
//	ok, err := store.Update("qwen3:8b", p.Options)
package params
