// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/thinkchat/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamTickMsg drives redraws while a reply streams.
type StreamTickMsg struct {
	Time time.Time
}

// StreamCompleteMsg is returned by the send command once the reply has been
// logged, whether it finished, was cancelled or failed part-way.
type StreamCompleteMsg struct {
	// Reply is nil when the request failed before anything was logged.
	Reply *model.Message
	Err   error
}

// =============================================================================
// BACKGROUND RESULTS
// =============================================================================

// OllamaStatusMsg reports whether the server answered at startup.
type OllamaStatusMsg struct {
	Running bool
	Error   error
}

// SavedMsg reports the result of saving the transcript.
type SavedMsg struct {
	// Changed is false when the stored copy was already current.
	Changed bool
	Auto    bool
	Err     error
}

// noticeExpiredMsg clears a transient status line notice.
type noticeExpiredMsg struct {
	id int
}
