// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/thinkchat/internal/model"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components for one output.
type Theme struct {
	Renderer     *lipgloss.Renderer
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER AND STATUS BAR
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	HeaderModel  lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	roleHeaders map[model.Role]lipgloss.Style
	roleBodies  map[model.Role]lipgloss.Style
	roleThought map[model.Role]lipgloss.Style

	ReasoningBox    lipgloss.Style
	ReasoningHeader lipgloss.Style
	Collapsed       lipgloss.Style
	Stats           lipgloss.Style
	Timestamp       lipgloss.Style

	// ==========================================================================
	// INPUT AND FEEDBACK
	// ==========================================================================

	InputBorder lipgloss.Style
	Spinner     lipgloss.Style
	Error       lipgloss.Style
	Notice      lipgloss.Style
	Help        lipgloss.Style
}

// NewTheme creates a theme drawn with r. mode is "auto", "dark" or "light";
// anything else is treated as "auto".
func NewTheme(r *lipgloss.Renderer, mode string) *Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	switch mode {
	case ModeDark:
		r.SetHasDarkBackground(true)
	case ModeLight:
		r.SetHasDarkBackground(false)
	}

	t := &Theme{
		Renderer:     r,
		IsDark:       r.HasDarkBackground(),
		ColorProfile: r.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	r := t.Renderer

	t.Header = r.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = r.NewStyle().Bold(true).Foreground(Cyan)
	t.HeaderModel = r.NewStyle().Foreground(TextSecondary)

	t.StatusBar = r.NewStyle().
		Foreground(TextMuted).
		Background(SurfaceDim).
		Padding(0, 1)
	t.ShortcutKey = r.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = r.NewStyle().Foreground(TextMuted)

	roleColors := map[model.Role]lipgloss.AdaptiveColor{
		model.RoleUser:      Blue,
		model.RoleAssistant: Emerald,
		model.RoleSystem:    Amber,
		model.RoleTool:      Cyan,
	}
	t.roleHeaders = make(map[model.Role]lipgloss.Style, len(roleColors))
	t.roleBodies = make(map[model.Role]lipgloss.Style, len(roleColors))
	t.roleThought = make(map[model.Role]lipgloss.Style, len(roleColors))
	for role, c := range roleColors {
		t.roleHeaders[role] = r.NewStyle().Foreground(c).Bold(true)
		t.roleBodies[role] = r.NewStyle().Foreground(c)
		t.roleThought[role] = r.NewStyle().Foreground(c).Italic(true).Faint(true)
	}

	t.ReasoningBox = r.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Purple).
		PaddingLeft(1)
	t.ReasoningHeader = r.NewStyle().Foreground(Purple).Italic(true)
	t.Collapsed = r.NewStyle().Foreground(TextMuted).Italic(true)
	t.Stats = r.NewStyle().Foreground(TextMuted)
	t.Timestamp = r.NewStyle().Foreground(TextMuted)

	t.InputBorder = r.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.Spinner = r.NewStyle().Foreground(Purple)
	t.Error = r.NewStyle().Foreground(Rose).Bold(true)
	t.Notice = r.NewStyle().Foreground(Cyan)
	t.Help = r.NewStyle().Foreground(TextMuted)
}

// RoleHeader returns the bold header style for role.
func (t *Theme) RoleHeader(role model.Role) lipgloss.Style {
	if s, ok := t.roleHeaders[role]; ok {
		return s
	}
	return t.Renderer.NewStyle().Bold(true)
}

// RoleBody returns the body text style for role.
func (t *Theme) RoleBody(role model.Role) lipgloss.Style {
	if s, ok := t.roleBodies[role]; ok {
		return s
	}
	return t.Renderer.NewStyle()
}

// Reasoning returns the dim italic style for reasoning text under role.
func (t *Theme) Reasoning(role model.Role) lipgloss.Style {
	if s, ok := t.roleThought[role]; ok {
		return s
	}
	return t.Renderer.NewStyle().Italic(true).Faint(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// RenderLines applies style to each line of s separately, so multi-line
// text is not padded to a common width.
func RenderLines(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
