// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorsAllowed reports whether the environment permits color at all.
// NO_COLOR (any non-empty value) wins over FORCE_COLOR.
// See https://no-color.org/.
func ColorsAllowed() bool {
	return os.Getenv("NO_COLOR") == ""
}

// colorsForced reports whether FORCE_COLOR asks for color on non-terminals.
func colorsForced() bool {
	return os.Getenv("FORCE_COLOR") != ""
}

// Profile returns the color profile to use for w.
func Profile(w io.Writer) termenv.Profile {
	if !ColorsAllowed() {
		return termenv.Ascii
	}
	out := termenv.NewOutput(w)
	profile := out.EnvColorProfile()
	if profile == termenv.Ascii && colorsForced() {
		return termenv.ANSI256
	}
	return profile
}

// NewRenderer returns a renderer for w whose color profile honours the
// terminal, NO_COLOR and FORCE_COLOR.
func NewRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(Profile(w))
	return r
}
