// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the chat screen until the user quits or ctx is done. A reply
// still streaming at exit is cancelled. With AutoSave set, unsaved changes
// are stored before Run returns.
func Run(ctx context.Context, opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.cancelMgr.cancel()
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat UI: %w", err)
	}

	if opts.AutoSave && opts.Store != nil && opts.Session.IsDirty() {
		sctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if _, err := opts.Store.Save(sctx, opts.Session.Transcript()); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
		opts.Session.MarkClean()
	}
	return nil
}
