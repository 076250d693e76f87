// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations for people to read outside the chat.
//
// # Supported Formats
//
//   - Markdown: reasoning folded into a <details> block per reply
//   - HTML: standalone page, code fences highlighted with chroma
//   - JSON: machine-readable, with the main/reasoning split spelled out
//
// Mirror prints a single message to a console in the same layout the chat
// uses: a role header, the reasoning dimmed, then the answer.
//
// # Usage
//
//	path, err := export.ExportToFile(transcript, export.NewMarkdownExporter(nil), opts)
//
//	export.Mirror(os.Stdout, msg)
package export
