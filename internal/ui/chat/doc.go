// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface.

The screen is a Bubble Tea model made of a header, a scrolling viewport with
the conversation, a textarea for the next prompt and a status bar.

# Streaming

Submitting a prompt runs session.Send on a command goroutine. Each snapshot
the session produces is written into a StreamingBuffer, and a tick picks up
the newest one at the configured frame rate (a golang.org/x/time/rate
limiter decides when). While the reasoning block is open it is drawn
expanded with a cursor at its end; once it closes it collapses to one line.

# Keys

  - Enter sends, Alt+Enter inserts a newline
  - Ctrl+C stops the reply in flight (the partial answer is kept) or quits
    when idle
  - Ctrl+R shows or hides finished reasoning
  - Ctrl+L clears the chat, keeping system messages
  - Ctrl+S saves the transcript
  - F1 toggles the help panel

# Usage

	err := chat.Run(ctx, chat.Options{
	    Session:  sess,
	    Store:    store,
	    AutoSave: cfg.Chat.AutoSave,
	    Checker:  client,
	})
*/
package chat
