// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the state of one conversation and drives the
// streaming exchange with the model.
//
// A Session owns the History, the selected model and its sampling options,
// and the console mirror setting. Send is the stream consumer: it logs the
// prompt, streams the reply fragment by fragment into a new assistant
// message, hands every snapshot to a Sink, and logs the finished reply.
//
// # Usage
//
//	sess := session.New(client, session.Options{Model: "qwen3:8b"})
//	reply, err := sess.Send(ctx, "Why is the sky blue?", session.SinkFuncs{
//	    OnUpdate: func(s segment.Snapshot) { redraw(session.WithCursor(s)) },
//	})
//
// Cancelling ctx stops the stream; the partial reply is kept and logged.
package session
