// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// themes caches one theme per console file; building a theme may query the
// terminal for its background color.
var themes sync.Map // *os.File -> *styles.Theme

func themeFor(w io.Writer) *styles.Theme {
	f, ok := w.(*os.File)
	if !ok {
		return styles.NewTheme(styles.NewRenderer(w), styles.ModeAuto)
	}
	if th, ok := themes.Load(f); ok {
		return th.(*styles.Theme)
	}
	th, _ := themes.LoadOrStore(f, styles.NewTheme(styles.NewRenderer(f), styles.ModeAuto))
	return th.(*styles.Theme)
}

// Mirror prints msg to w: a blank line, the role header, the reasoning (if
// any) dim and italic under its opening tag, then the main text, all in the
// role's color. Messages without main text print their raw content.
func Mirror(w io.Writer, msg *model.Message) {
	if msg == nil {
		return
	}
	fmt.Fprint(w, FormatMirror(themeFor(w), msg))
}

// FormatMirror renders msg the way Mirror prints it.
func FormatMirror(theme *styles.Theme, msg *model.Message) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(theme.RoleHeader(msg.Role).Render("[" + strings.ToUpper(msg.Role.String()) + "]"))
	sb.WriteString("\n")

	if r, ok := msg.ReasoningText(); ok && r != "" {
		block := msg.ReasoningTag().Open() + "\n" + strings.TrimSpace(r)
		sb.WriteString(styles.RenderLines(theme.Reasoning(msg.Role), block))
		sb.WriteString("\n")
	}

	text := msg.Content()
	if main, ok := msg.MainText(); ok && main != "" {
		text = main
	}
	sb.WriteString(styles.RenderLines(theme.RoleBody(msg.Role), strings.TrimSpace(text)))
	sb.WriteString("\n")
	return sb.String()
}
