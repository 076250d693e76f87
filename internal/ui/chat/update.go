// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/segment"
	"github.com/jeranaias/thinkchat/internal/session"
)

const (
	noticeTTL    = 4 * time.Second
	saveTimeout  = 10 * time.Second
	checkTimeout = 5 * time.Second
)

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.layout()
		m.refresh()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case StreamCompleteMsg:
		return m.handleStreamComplete(msg)

	case SavedMsg:
		return m.handleSaved(msg)

	case OllamaStatusMsg:
		if !msg.Running {
			m.err = msg.Error
			m.logger.Warn("ollama not reachable", "error", msg.Error)
		}
		return m, nil

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelMgr.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.state == StateStreaming {
			if m.cancelMgr.cancel() {
				m.logger.Info("reply cancelled by user")
				return m, m.setNotice("Stopping…")
			}
			return m, nil
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.showHelp = false
		m.err = nil
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.ToggleReasoning):
		m.showReasoning = !m.showReasoning
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if m.state == StateStreaming {
			return m, m.setNotice("Wait for the reply to finish before clearing")
		}
		m.sess.ClearChat()
		m.err = nil
		m.lastStats = nil
		m.state = StateReady
		m.refresh()
		return m, m.setNotice("Chat cleared")

	case key.Matches(msg, m.keys.Save):
		return m.save(false)

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SENDING
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}
	if m.state == StateStreaming {
		return m, m.setNotice("A reply is still streaming (C-c to stop it)")
	}

	m.input.Reset()
	m.err = nil
	m.state = StateStreaming
	m.live = segment.Snapshot{}
	m.buffer.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	m.logger.Debug("sending prompt", "chars", len(prompt))
	return m, tea.Batch(
		sendCmd(ctx, m.sess, prompt, m.buffer),
		m.spinner.Tick,
		streamTickCmd(m.buffer.Interval()),
	)
}

// sendCmd runs one reply on the command goroutine. Progress reaches the UI
// through the buffer; the result arrives as StreamCompleteMsg.
func sendCmd(ctx context.Context, sess *session.Session, prompt string, sink session.Sink) tea.Cmd {
	return func() tea.Msg {
		reply, err := sess.Send(ctx, prompt, sink)
		return StreamCompleteMsg{Reply: reply, Err: err}
	}
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}
	snap, changed := m.buffer.Flush()
	if changed {
		m.live = snap
	}
	if changed || m.sess.History().Len() != m.renderedLen {
		m.refresh()
	}
	return m, streamTickCmd(m.buffer.Interval())
}

func (m Model) handleStreamComplete(msg StreamCompleteMsg) (tea.Model, tea.Cmd) {
	cancelled := m.cancelMgr.wasCancelled()
	m.cancelMgr.clear()
	m.live = segment.Snapshot{}
	m.buffer.Reset()
	m.state = StateReady

	var cmds []tea.Cmd
	if msg.Reply != nil && msg.Reply.Stats != nil {
		m.lastStats = msg.Reply.Stats
	}

	switch {
	case msg.Err != nil:
		m.state = StateError
		m.err = msg.Err
		m.logger.Error("reply failed", "error", msg.Err)
	case cancelled:
		cmds = append(cmds, m.setNotice("Reply stopped; partial answer kept"))
	}

	m.refresh()

	if m.autoSave && m.store != nil && msg.Reply != nil {
		_, cmd := m.save(true)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// SAVING
// =============================================================================

func (m Model) save(auto bool) (tea.Model, tea.Cmd) {
	if m.store == nil {
		if auto {
			return m, nil
		}
		return m, m.setNotice("Saving is disabled")
	}
	if m.state == StateStreaming {
		return m, m.setNotice("Wait for the reply to finish before saving")
	}
	if m.sess.History().LastOf(model.RoleUser) == nil {
		if auto {
			return m, nil
		}
		return m, m.setNotice("Nothing to save yet")
	}
	return m, saveCmd(m.store, m.sess, auto)
}

func saveCmd(store Saver, sess *session.Session, auto bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		changed, err := store.Save(ctx, sess.Transcript())
		if err == nil {
			sess.MarkClean()
		}
		return SavedMsg{Changed: changed, Auto: auto, Err: err}
	}
}

func (m Model) handleSaved(msg SavedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Error("save failed", "error", msg.Err)
		return m, m.setNotice("Save failed: " + msg.Err.Error())
	}
	m.logger.Info("transcript saved", "session", m.sess.ID(), "changed", msg.Changed, "auto", msg.Auto)
	switch {
	case msg.Auto:
		return m, nil
	case msg.Changed:
		return m, m.setNotice("Saved")
	default:
		return m, m.setNotice("Already saved")
	}
}

// =============================================================================
// OLLAMA CHECK
// =============================================================================

func (m Model) checkOllama() tea.Cmd {
	checker := m.checker
	if checker == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := checker.CheckRunning(ctx); err != nil {
			if !errors.Is(err, ollama.ErrNotRunning) {
				err = errors.Join(ollama.ErrNotRunning, err)
			}
			return OllamaStatusMsg{Running: false, Error: err}
		}
		return OllamaStatusMsg{Running: true}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// setNotice shows text in the status line until it expires or is replaced.
func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeID++
	m.notice = text
	id := m.noticeID
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}
