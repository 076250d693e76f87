// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/segment"
	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/storage"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// =============================================================================
// STATE ENUM
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Waiting for input
	StateStreaming              // A reply is arriving
	StateError                  // The last request failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Saver persists transcripts. *storage.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, t storage.Transcript) (bool, error)
}

// Checker probes the model server. *ollama.Client satisfies it.
type Checker interface {
	CheckRunning(ctx context.Context) error
}

// Options configures a chat Model.
type Options struct {
	Session *session.Session

	// Store receives transcripts on ctrl+s and after each reply when
	// AutoSave is set. Nil disables saving.
	Store    Saver
	AutoSave bool

	// Checker is probed once at startup. Nil skips the probe.
	Checker Checker

	Theme         *styles.Theme
	ShowReasoning bool
	ShowStats     bool
	FPS           int
	Logger        *slog.Logger
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	sess    *session.Session
	store   Saver
	checker Checker
	theme   *styles.Theme
	logger  *slog.Logger
	keys    KeyMap

	// Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	// Streaming
	state     State
	buffer    *StreamingBuffer
	live      segment.Snapshot
	cancelMgr *cancelManager

	// Display
	showReasoning bool
	showStats     bool
	showHelp      bool
	autoSave      bool
	renderedLen   int
	lastStats     *model.Statistics

	// Feedback
	err      error
	notice   string
	noticeID int

	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(nil, styles.ModeAuto)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ta := textarea.New()
	ta.Placeholder = "Message the model… (Enter to send)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys(DefaultKeyMap().Newline.Keys()...)
	ta.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(theme.Spinner),
	)

	h := help.New()
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.FullKey = theme.ShortcutKey
	h.Styles.FullDesc = theme.ShortcutDesc

	return Model{
		sess:          opts.Session,
		store:         opts.Store,
		checker:       opts.Checker,
		theme:         theme,
		logger:        logger.With("component", "chat"),
		keys:          DefaultKeyMap(),
		viewport:      viewport.New(80, 20),
		input:         ta,
		spinner:       sp,
		help:          h,
		state:         StateReady,
		buffer:        NewStreamingBuffer(opts.FPS),
		cancelMgr:     newCancelManager(),
		showReasoning: opts.ShowReasoning,
		showStats:     opts.ShowStats,
		autoSave:      opts.AutoSave,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.checkOllama())
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current state.
func (m Model) State() State { return m.state }

// Err returns the error of the last failed request, if any.
func (m Model) Err() error { return m.err }

// Notice returns the transient status line message.
func (m Model) Notice() string { return m.notice }

// Session returns the session shown by the model.
func (m Model) Session() *session.Session { return m.sess }

// ShowingReasoning reports whether finished reasoning is expanded.
func (m Model) ShowingReasoning() bool { return m.showReasoning }

// Live returns the snapshot of the reply being streamed.
func (m Model) Live() segment.Snapshot { return m.live }
