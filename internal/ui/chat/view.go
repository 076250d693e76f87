// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/segment"
	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/storage"
)

const (
	inputHeight = 3
	minWidth    = 20
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the components for the current window.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	m.input.SetWidth(max(m.width-2, minWidth))
	m.help.Width = m.width

	chrome := 1 + (inputHeight + 2) + 1 // header, bordered input, status bar
	if m.showHelp {
		chrome += lipgloss.Height(m.help.FullHelpView(m.keys.FullHelp()))
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-chrome, 1)
}

// refresh re-renders the conversation into the viewport. The view follows
// the end of the conversation unless the user scrolled away from it.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom() || m.state == StateStreaming
	m.viewport.SetContent(m.renderMessages())
	m.renderedLen = m.sess.History().Len()
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting…"
	}

	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.theme.InputBorder.Render(m.input.View()),
		m.renderStatus(),
	}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keys.FullHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("thinkchat")
	modelName := m.theme.HeaderModel.Render(m.sess.Icon() + " " + m.sess.Model())
	id := m.theme.HeaderModel.Render(storage.ShortID(m.sess.ID()))

	left := title + "  " + modelName
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(id) - 2
	if gap < 1 {
		return m.theme.Header.Width(m.width).Render(left)
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + id)
}

func (m Model) renderStatus() string {
	var line string
	switch {
	case m.err != nil:
		line = m.theme.Error.Render("Error: " + m.err.Error())
	case m.notice != "":
		line = m.theme.Notice.Render(m.notice)
	case m.state == StateStreaming:
		line = m.spinner.View() + " " + m.help.ShortHelpView(m.keys.StreamingHelp())
	default:
		line = m.help.ShortHelpView(m.keys.ShortHelp())
		if m.showStats && m.lastStats != nil {
			line = m.theme.Stats.Render(m.lastStats.Format()) + "  " + line
		}
	}
	return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).MaxHeight(1).Render(line)
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m *Model) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.sess.History().Messages() {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	if m.state == StateStreaming {
		sb.WriteString(m.renderLive())
	}
	if sb.Len() == 0 {
		return m.theme.Help.Render("\n  Say something to start the conversation.")
	}
	return sb.String()
}

func (m *Model) renderMessage(msg *model.Message) string {
	var sb strings.Builder
	sb.WriteString(m.renderRoleHeader(msg.Role, msg.Timestamp.Format("15:04")))
	sb.WriteString("\n")

	if msg.Role == model.RoleAssistant {
		if text, ok := msg.ReasoningText(); ok {
			sb.WriteString(m.renderReasoning(msg.ReasoningTag(), strings.TrimSpace(text), msg.InReasoning(), false))
		}
	}

	body := strings.TrimSpace(msg.DisplayText())
	if body != "" {
		sb.WriteString(m.wrap(m.theme.RoleBody(msg.Role), body))
		sb.WriteString("\n")
	}

	if m.showStats {
		if stats := msg.FormatStats(); stats != "" {
			sb.WriteString(m.theme.Stats.Render(stats))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderLive draws the reply in flight with the cursor on its growing end.
func (m *Model) renderLive() string {
	snap := session.WithCursor(m.live)

	var sb strings.Builder
	sb.WriteString(m.renderRoleHeader(model.RoleAssistant, m.spinner.View()))
	sb.WriteString("\n")
	if snap.HasReasoning {
		open := m.live.InReasoning
		sb.WriteString(m.renderReasoning(snap.Tag, strings.TrimLeft(snap.Reasoning, " \n"), open, open))
	}
	if !snap.InReasoning {
		sb.WriteString(m.wrap(m.theme.RoleBody(model.RoleAssistant), strings.TrimLeft(snap.Main, " \n")))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderRoleHeader(role model.Role, suffix string) string {
	name := m.theme.RoleHeader(role).Render(m.roleIcon(role) + " " + role.DisplayName())
	return name + " " + m.theme.Timestamp.Render(suffix)
}

func (m *Model) roleIcon(role model.Role) string {
	switch role {
	case model.RoleUser:
		return m.sess.Avatar()
	case model.RoleAssistant:
		return m.sess.Icon()
	case model.RoleSystem:
		return "⚙"
	default:
		return "•"
	}
}

// renderReasoning draws a reasoning block. A block still being written is
// always expanded; a finished one is collapsed to a single line unless the
// user toggled reasoning on.
func (m *Model) renderReasoning(tag segment.Tag, text string, open, live bool) string {
	label := tag.String()
	if open && !live {
		label += " (unfinished)"
	}

	if !live && !m.showReasoning {
		lines := strings.Count(text, "\n") + 1
		if text == "" {
			lines = 0
		}
		return m.theme.Collapsed.Render(fmt.Sprintf("▸ %s · %d %s hidden (%s to show)",
			label, lines, plural(lines, "line", "lines"), m.keys.ToggleReasoning.Help().Key)) + "\n"
	}

	header := m.theme.ReasoningHeader.Render("▾ " + label)
	if text == "" {
		return header + "\n"
	}
	width := max(m.contentWidth()-2, minWidth)
	body := m.theme.ReasoningBox.Render(
		m.theme.Reasoning(model.RoleAssistant).Width(width).Render(text))
	return header + "\n" + body + "\n"
}

func (m *Model) wrap(style lipgloss.Style, text string) string {
	return style.Width(m.contentWidth()).Render(text)
}

func (m *Model) contentWidth() int {
	return max(m.viewport.Width-1, minWidth)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
