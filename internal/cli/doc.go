// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the thinkchat command line.
//
// # Commands
//
//	thinkchat                 full screen chat (requires a terminal)
//	thinkchat chat            line-by-line REPL with input history
//	thinkchat ask PROMPT      one answer on stdout, reasoning optional on stderr
//	thinkchat models          models installed on the Ollama server
//	thinkchat params ...      per-model sampling parameters
//	thinkchat history ...     saved conversations
//	thinkchat config ...      settings file
//	thinkchat version
//
// Every command loads the settings once in the root command's
// PersistentPreRunE; flags such as --model and --ollama-url override them
// for the run only.
//
// # Exit Codes
//
// ExitCode maps errors onto the codes listed in errors.go so scripts can
// tell a missing server (5) from an unknown conversation (7) or a bad
// argument (2). An answer stopped with Ctrl+C exits with 130.
//
// # Streaming Output
//
// The line commands print replies through a streamPrinter. Reasoning and
// main text are re-derived from the whole reply after every fragment, so
// text that may still turn into a tag is held back until it resolves.
package cli
