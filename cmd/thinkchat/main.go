// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// thinkchat - A terminal chat front-end for local Ollama models that keeps
// the model's reasoning apart from its answer.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/thinkchat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = ""
	GitCommit = ""
	BuildDate = ""
)

func main() {
	if Version != "" {
		cli.Version = Version
	}
	if GitCommit != "" {
		cli.GitCommit = GitCommit
	}
	if BuildDate != "" {
		cli.BuildDate = BuildDate
	}

	// SIGINT is left to the commands: the chat screen reads it as a key and
	// the REPL uses it to stop a streaming reply.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
