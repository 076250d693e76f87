// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/thinkchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError is a storage failure that callers can match with errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is reports whether target is a StoreError with the same message.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrNotFound is returned when no transcript matches an ID.
	ErrNotFound = &StoreError{Message: "conversation not found"}
	// ErrAmbiguous is returned when a short ID matches several transcripts.
	ErrAmbiguous = &StoreError{Message: "conversation ID is ambiguous"}
	// ErrNoID is returned by Save for a transcript without an ID.
	ErrNoID = &StoreError{Message: "conversation has no ID"}
)

// =============================================================================
// STORE
// =============================================================================

// Options configures Open.
type Options struct {
	// Path is the database file.
	Path string
	// MaxTranscripts caps stored transcripts; the least recently updated are
	// removed first. Zero means unlimited.
	MaxTranscripts int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns options for the database at path.
func DefaultOptions(path string) Options {
	return Options{
		Path:           path,
		MaxTranscripts: 500,
	}
}

// Store is a SQLite-backed transcript store. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger
}

// Open opens (creating if needed) the database at opts.Path.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("storage: database path is empty")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{
		db:     db,
		opts:   opts,
		logger: opts.Logger.With("component", "storage"),
	}, nil
}

// migrate records the schema version of a new database, or applies the
// migrations an older one is missing. Rows written before a column existed
// take its default.
func migrate(db *sql.DB) error {
	var stored string
	err := db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.Exec(`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)`,
			strconv.Itoa(SchemaVersion))
		return err
	}
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("bad schema version %q", stored)
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported (%d)", version, SchemaVersion)
	}
	for v := version; v < SchemaVersion; v++ {
		if _, err := db.Exec(migrations[v-1]); err != nil {
			return fmt.Errorf("upgrade to version %d: %w", v+1, err)
		}
	}
	_, err = db.Exec(`UPDATE metadata SET value = ? WHERE key = 'schema_version'`, strconv.Itoa(SchemaVersion))
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.opts.Path
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes t, replacing any earlier copy with the same ID. It reports
// false without writing when the stored copy already has the same messages,
// title and model.
func (s *Store) Save(ctx context.Context, t Transcript) (bool, error) {
	if t.ID == "" {
		return false, ErrNoID
	}
	now := time.Now()
	if t.Created.IsZero() {
		t.Created = now
	}
	if t.Updated.IsZero() {
		t.Updated = now
	}
	if t.Title == "" {
		t.Title = model.DefaultTitle
	}
	digest := t.Digest()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var oldDigest, oldTitle, oldModel string
	err = tx.QueryRowContext(ctx,
		`SELECT digest, title, model FROM conversations WHERE id = ?`, t.ID).
		Scan(&oldDigest, &oldTitle, &oldModel)
	switch {
	case err == nil:
		if oldDigest == digest && oldTitle == t.Title && oldModel == t.Model {
			return false, nil
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return false, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, model, created_at, updated_at, digest, message_count, preview, search)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			updated_at = excluded.updated_at,
			digest = excluded.digest,
			message_count = excluded.message_count,
			preview = excluded.preview,
			search = excluded.search`,
		t.ID, t.Title, t.Model, t.Created.UnixMilli(), t.Updated.UnixMilli(),
		digest, len(t.Messages), t.Preview(80), normalize(t.Title))
	if err != nil {
		return false, fmt.Errorf("failed to save conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, t.ID); err != nil {
		return false, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (conversation_id, seq, id, role, ts, content, parsed, search,
			has_stats, duration_ns, ttft_ns, prompt_tokens, completion_tokens, tokens_per_sec, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for i, msg := range t.Messages {
		var st model.Statistics
		if msg.Stats != nil {
			st = *msg.Stats
		}
		content := msg.Content()
		_, err := stmt.ExecContext(ctx,
			t.ID, i, msg.ID, msg.Role.String(), msg.Timestamp.UnixMilli(), content, boolInt(msg.IsParsed()), normalize(content),
			boolInt(msg.Stats != nil), int64(st.TotalDuration), int64(st.TTFT),
			st.PromptTokens, st.CompletionTokens, st.TokensPerSecond, boolInt(st.Cancelled))
		if err != nil {
			return false, fmt.Errorf("failed to save message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.logger.Debug("conversation saved", "id", t.ID, "messages", len(t.Messages))

	if s.opts.MaxTranscripts > 0 {
		s.enforceLimit(ctx)
	}
	return true, nil
}

// enforceLimit removes the oldest transcripts beyond MaxTranscripts.
func (s *Store) enforceLimit(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT -1 OFFSET ?
		)`, s.opts.MaxTranscripts)
	if err != nil {
		s.logger.Warn("failed to prune conversations", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("pruned old conversations", "count", n)
	}
}

// =============================================================================
// LOAD
// =============================================================================

// Load returns the transcript with the given ID or unique short ID.
func (s *Store) Load(ctx context.Context, ref string) (Transcript, error) {
	id, err := s.Resolve(ctx, ref)
	if err != nil {
		return Transcript{}, err
	}

	var (
		t                Transcript
		created, updated int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, title, model, created_at, updated_at FROM conversations WHERE id = ?`, id).
		Scan(&t.ID, &t.Title, &t.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Transcript{}, ErrNotFound
	}
	if err != nil {
		return Transcript{}, err
	}
	t.Created = time.UnixMilli(created)
	t.Updated = time.UnixMilli(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, ts, content, parsed, has_stats, duration_ns, ttft_ns,
			prompt_tokens, completion_tokens, tokens_per_sec, cancelled
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return Transcript{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msgID, role, content        string
			ts, duration, ttft          int64
			parsed, hasStats, cancelled int
			st                          model.Statistics
		)
		if err := rows.Scan(&msgID, &role, &ts, &content, &parsed, &hasStats, &duration, &ttft,
			&st.PromptTokens, &st.CompletionTokens, &st.TokensPerSecond, &cancelled); err != nil {
			return Transcript{}, err
		}
		r, err := model.ParseRole(role)
		if err != nil {
			return Transcript{}, fmt.Errorf("conversation %s: %w", id, err)
		}

		var stats *model.Statistics
		if hasStats != 0 {
			st.TotalDuration = time.Duration(duration)
			st.TTFT = time.Duration(ttft)
			st.Cancelled = cancelled != 0
			stats = &st
		}
		t.Messages = append(t.Messages, model.RestoreMessage(msgID, r, time.UnixMilli(ts), content, parsed != 0, stats))
	}
	return t, rows.Err()
}

// Resolve maps a full or short transcript ID to the full ID.
func (s *Store) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrNotFound
	}

	prefixes := []string{ref}
	if !strings.HasPrefix(ref, "sess_") {
		prefixes = append(prefixes, "sess_"+ref)
	}

	var ids []string
	for _, p := range prefixes {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM conversations WHERE substr(id, 1, ?) = ? LIMIT 3`, len(p), p)
		if err != nil {
			return "", err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return "", err
			}
			if id == ref {
				rows.Close()
				return id, nil
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return "", err
		}
	}

	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", ErrAmbiguous
	}
}

// =============================================================================
// LIST AND SEARCH
// =============================================================================

const summaryColumns = `id, title, model, created_at, updated_at, message_count, preview`

// List returns up to limit summaries, most recently updated first. A limit
// of zero or less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM conversations ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Search returns the transcripts whose title or any message contains query,
// ignoring case and compatibility differences, most recent first. An empty
// query lists everything.
func (s *Store) Search(ctx context.Context, query string) ([]Summary, error) {
	q := normalize(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx, 0)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM conversations c
		WHERE instr(c.search, ?1) > 0
		   OR EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id AND instr(m.search, ?1) > 0)
		ORDER BY c.updated_at DESC`, q)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	defer rows.Close()

	list := []Summary{}
	for rows.Next() {
		var (
			sum              Summary
			created, updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Model, &created, &updated,
			&sum.MessageCount, &sum.Preview); err != nil {
			return nil, err
		}
		sum.Created = time.UnixMilli(created)
		sum.Updated = time.UnixMilli(updated)
		list = append(list, sum)
	}
	return list, rows.Err()
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes the transcript with the given ID or unique short ID and
// returns its full ID.
func (s *Store) Delete(ctx context.Context, ref string) (string, error) {
	id, err := s.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	s.logger.Info("conversation deleted", "id", id)
	return id, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
