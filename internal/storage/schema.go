// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SchemaVersion is bumped whenever Schema changes incompatibly.
const SchemaVersion = 2

// Schema creates the transcript tables. Times are Unix milliseconds,
// durations nanoseconds. The search columns hold normalised copies of the
// searchable text.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL,
    model         TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL,
    digest        TEXT NOT NULL,
    message_count INTEGER NOT NULL,
    preview       TEXT NOT NULL,
    search        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
    conversation_id   TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    seq               INTEGER NOT NULL,
    id                TEXT NOT NULL,
    role              TEXT NOT NULL,
    ts                INTEGER NOT NULL,
    content           TEXT NOT NULL,
    parsed            INTEGER NOT NULL DEFAULT 0,
    search            TEXT NOT NULL,
    has_stats         INTEGER NOT NULL DEFAULT 0,
    duration_ns       INTEGER NOT NULL DEFAULT 0,
    ttft_ns           INTEGER NOT NULL DEFAULT 0,
    prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    tokens_per_sec    REAL NOT NULL DEFAULT 0,
    cancelled         INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (conversation_id, seq)
);

CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// migrations bring a database created by an older version up to
// SchemaVersion. Entry i upgrades from version i+1.
var migrations = []string{
	`ALTER TABLE messages ADD COLUMN parsed INTEGER NOT NULL DEFAULT 0`,
}

// normalize folds text for matching: compatibility forms are unified
// (full-width letters, ligatures) and case is folded.
func normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}
