// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/thinkchat/internal/export"
	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/storage"
)

// DefaultAvatar is the user's avatar when none is configured.
const DefaultAvatar = "😎"

// Avatars are the choices offered for the user's avatar.
var Avatars = []string{"😎", "😀", "🤪"}

var (
	// ErrBusy is returned by Send while another reply is streaming.
	ErrBusy = errors.New("a reply is already streaming")
	// ErrEmptyPrompt is returned by Send for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrNoModel is returned by Send when no model is selected.
	ErrNoModel = errors.New("no model selected")
)

// =============================================================================
// SESSION
// =============================================================================

// Options configures a new Session.
type Options struct {
	// Model is the Ollama model name, e.g. "qwen3:8b".
	Model string
	// Params are the sampling options sent with every request. Nil leaves
	// the server defaults in effect.
	Params *ollama.Options
	// Icon is the assistant's avatar.
	Icon string
	// Avatar is the user's avatar.
	Avatar string
	// Mirror, when non-nil, receives a console dump of every message as it
	// is logged.
	Mirror io.Writer
	// KeepAlive is forwarded on chat requests.
	KeepAlive string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is the state of one conversation. It is safe for concurrent use;
// at most one Send runs at a time.
type Session struct {
	mu sync.Mutex

	id        string
	created   time.Time
	source    Source
	model     string
	params    *ollama.Options
	icon      string
	avatar    string
	mirror    io.Writer
	keepAlive string
	logger    *slog.Logger

	history *model.History
	busy    bool
	dirty   bool
}

// New creates an empty session streaming from src.
func New(src Source, opts Options) *Session {
	s := &Session{
		id:        "sess_" + uuid.NewString(),
		created:   time.Now(),
		source:    src,
		model:     opts.Model,
		params:    opts.Params,
		icon:      opts.Icon,
		avatar:    opts.Avatar,
		mirror:    opts.Mirror,
		keepAlive: opts.KeepAlive,
		logger:    opts.Logger,
		history:   model.NewHistory(),
	}
	if s.icon == "" {
		s.icon = "🤖"
	}
	if s.avatar == "" {
		s.avatar = DefaultAvatar
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session", s.id)
	return s
}

// Resume recreates a session from a stored transcript, keeping its ID so a
// later save updates the same record.
func Resume(src Source, t storage.Transcript, opts Options) (*Session, error) {
	if opts.Model == "" {
		opts.Model = t.Model
	}
	s := New(src, opts)
	s.id = t.ID
	s.created = t.Created
	s.logger = s.logger.With("resumed", true)
	for _, msg := range t.Messages {
		if err := s.history.Append(msg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Created returns when the session started.
func (s *Session) Created() time.Time { return s.created }

// History returns the current conversation log.
func (s *Session) History() *model.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Model returns the selected model.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel selects the model used by the next Send, with its sampling
// options and icon.
func (s *Session) SetModel(name string, params *ollama.Options, icon string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = name
	s.params = params
	if icon != "" {
		s.icon = icon
	}
	s.logger.Info("model selected", "model", name)
}

// Params returns a copy of the sampling options, or nil.
func (s *Session) Params() *ollama.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return nil
	}
	p := *s.params
	return &p
}

// SetParams replaces the sampling options used by the next Send.
func (s *Session) SetParams(p *ollama.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// Icon returns the assistant's avatar.
func (s *Session) Icon() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.icon
}

// Avatar returns the user's avatar.
func (s *Session) Avatar() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatar
}

// SetAvatar changes the user's avatar.
func (s *Session) SetAvatar(a string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatar = a
}

// SetMirror turns the console mirror on (w non-nil) or off.
func (s *Session) SetMirror(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = w
}

// Mirroring reports whether messages are mirrored to the console.
func (s *Session) Mirroring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror != nil
}

// Busy reports whether a reply is streaming.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// =============================================================================
// HISTORY OPERATIONS
// =============================================================================

// SetSystemMessage logs a new system message. Earlier system messages stay
// in the log; the model sees all of them in order.
func (s *Session) SetSystemMessage(text string) error {
	return s.log(model.NewTextMessage(model.RoleSystem, text))
}

// SystemMessage returns the text of the most recent system message.
func (s *Session) SystemMessage() string {
	if msg := s.History().LastOf(model.RoleSystem); msg != nil {
		return msg.Content()
	}
	return ""
}

// ClearChat drops every user, assistant and tool message, keeping the
// system messages. The previous History value is left untouched.
func (s *Session) ClearChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history.WithoutChat()
	s.dirty = true
	s.logger.Info("chat cleared", "kept", s.history.Len())
}

// DumpMessages writes every logged message to w in the console mirror format.
func (s *Session) DumpMessages(w io.Writer) {
	for _, msg := range s.History().Messages() {
		export.Mirror(w, msg)
	}
}

// log appends msg to the history and mirrors it.
func (s *Session) log(msg *model.Message) error {
	s.mu.Lock()
	h, mirror := s.history, s.mirror
	s.dirty = true
	s.mu.Unlock()

	if err := h.Append(msg); err != nil {
		return err
	}
	if mirror != nil {
		export.Mirror(mirror, msg)
	}
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// IsDirty reports whether the history changed since the last MarkClean.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkClean records that the current history has been saved.
func (s *Session) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// Transcript returns the session in storable form.
func (s *Session) Transcript() storage.Transcript {
	h := s.History()
	return storage.Transcript{
		ID:       s.id,
		Title:    h.Title(),
		Model:    s.Model(),
		Created:  s.created,
		Updated:  time.Now(),
		Messages: h.Messages(),
	}
}
