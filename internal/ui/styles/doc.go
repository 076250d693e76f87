// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling shared by the chat TUI, the line
REPL and the console mirror.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values, so the same palette works on
light and dark terminals. Each role has its own color:

	user      - Blue
	assistant - Emerald
	system    - Amber
	tool      - Cyan

Reasoning text is always drawn dim and italic in the role's color.

# Renderers (renderer.go)

NewRenderer binds a lipgloss.Renderer to an output writer and picks its
color profile with termenv. NO_COLOR disables color; FORCE_COLOR enables it
even when the writer is not a terminal.

# Theme (theme.go)

	theme := styles.NewTheme(styles.NewRenderer(os.Stdout), cfg.UI.Theme)
	header := theme.RoleHeader(model.RoleAssistant).Render("[ASSISTANT]")
*/
package styles
