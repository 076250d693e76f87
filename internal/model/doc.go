// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one exchange unit; raw content plus its main/reasoning split
//   - History: the append-only conversation log owned by a session
//   - Statistics: timing and token counts for a generation
//   - Role: message role enumeration (user, assistant, system, tool)
//
// # Usage
//
// Stream a reply into a message, then log it:
//
//	msg := model.NewMessage(model.RoleAssistant)
//	for frag := range fragments {
//	    snap := msg.Ingest(frag)
//	    draw(snap)
//	}
//	msg.Finalize(stats)
//	history.Append(msg)
package model
