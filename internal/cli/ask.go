// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One question, one answer.
//
// Command: ask [PROMPT...]
// Short:   Ask a single question and print the answer
//
// The prompt is read from stdin when no argument (or "-") is given. The main
// text goes to stdout; reasoning is dropped unless --show-reasoning sends it
// to stderr, so the output stays usable in pipes.
//
// Examples:
//   thinkchat ask "Why is the sky blue?"
//   git diff | thinkchat ask --system "Review this diff"
//   thinkchat ask --json "Name three prime numbers" | jq .messages
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/export"
	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/storage"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// MaxStdinPrompt caps how much of stdin is read as the prompt (1 MiB).
const MaxStdinPrompt = 1 << 20

type askFlags struct {
	system        string
	noStream      bool
	showReasoning bool
	markdown      bool
	json          bool
	stats         bool
	save          bool
}

func newAskCmd(a *app) *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask [PROMPT...]",
		Short: "Ask a single question and print the answer",
		Long: `Send one prompt and print the answer. The prompt is read from stdin when
no argument (or "-") is given. Reasoning is left out of stdout; use
--show-reasoning to print it on stderr.`,
		Example: `  $ thinkchat ask "Why is the sky blue?"
  $ git diff | thinkchat ask --system "Review this diff"
  $ thinkchat ask --show-reasoning "Is 1001 prime?" 2>reasoning.txt
  $ thinkchat ask --json "Name three prime numbers"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.system, "system", "s", "", "system message (overrides chat.system_message)")
	fl.BoolVar(&f.noStream, "no-stream", false, "wait for the complete answer")
	fl.BoolVar(&f.showReasoning, "show-reasoning", false, "print reasoning to stderr")
	fl.BoolVar(&f.markdown, "markdown", false, "render the answer as markdown (terminal only)")
	fl.BoolVar(&f.json, "json", false, "print the exchange as JSON")
	fl.BoolVar(&f.stats, "stats", false, "print timing and token counts to stderr")
	fl.BoolVar(&f.save, "save", false, "store the exchange in the history")
	return cmd
}

// readPrompt joins args, or reads stdin when there are none or the only one
// is "-".
func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, MaxStdinPrompt+1))
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	if len(data) > MaxStdinPrompt {
		return "", usageErrorf("prompt on stdin is larger than %d bytes", MaxStdinPrompt)
	}
	return string(data), nil
}

func (a *app) runAsk(cmd *cobra.Command, args []string, f askFlags) error {
	// Ctrl+C stops the answer; what arrived is still printed.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if len(args) == 0 && cmd.InOrStdin() == os.Stdin && IsTTY() {
		return usageErrorf("no prompt given (pass it as arguments or on stdin)")
	}
	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(prompt) == "" {
		return session.ErrEmptyPrompt
	}
	if err := a.connect(ctx); err != nil {
		return err
	}

	system := a.cfg.Chat.SystemMessage
	if f.system != "" {
		system = f.system
	}

	var (
		t     storage.Transcript
		reply *model.Message
	)
	if f.noStream {
		t, reply, err = a.askOnce(ctx, prompt, system)
	} else {
		t, reply, err = a.askStreaming(ctx, cmd, prompt, system, f)
	}
	if err != nil {
		return err
	}

	if f.noStream && !f.json {
		a.printWhole(cmd, reply, f)
	}
	if f.json {
		data, err := export.NewJSONExporter(&export.Options{IncludeReasoning: true}).Export(t)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}
	if f.stats {
		if s := reply.FormatStats(); s != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), s)
		}
	}
	if f.save {
		if err := a.withStore(func(s *storage.Store) error {
			_, err := s.Save(context.WithoutCancel(ctx), t)
			return err
		}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved as %s\n", storage.ShortID(t.ID))
	}

	if reply.Stats != nil && reply.Stats.Cancelled {
		return context.Canceled
	}
	return nil
}

// askStreaming sends prompt through a session, printing the answer as it
// arrives unless JSON output was asked for.
func (a *app) askStreaming(ctx context.Context, cmd *cobra.Command, prompt, system string, f askFlags) (storage.Transcript, *model.Message, error) {
	opts, err := a.sessionOptions(a.cfg.DefaultModel)
	if err != nil {
		return storage.Transcript{}, nil, err
	}
	sess := session.New(a.ollamaClient(), opts)
	if system != "" {
		if err := sess.SetSystemMessage(system); err != nil {
			return storage.Transcript{}, nil, err
		}
	}

	var sink session.Sink
	if !f.json {
		sink = newStreamPrinter(a.printerOptions(cmd, f))
	}
	reply, err := sess.Send(ctx, prompt, sink)
	if err != nil {
		return storage.Transcript{}, reply, err
	}
	return sess.Transcript(), reply, nil
}

// askOnce waits for the complete answer.
func (a *app) askOnce(ctx context.Context, prompt, system string) (storage.Transcript, *model.Message, error) {
	opts, err := a.sessionOptions(a.cfg.DefaultModel)
	if err != nil {
		return storage.Transcript{}, nil, err
	}

	h := model.NewHistory()
	if system != "" {
		if err := h.Append(model.NewTextMessage(model.RoleSystem, system)); err != nil {
			return storage.Transcript{}, nil, err
		}
	}
	if err := h.Append(model.NewTextMessage(model.RoleUser, prompt)); err != nil {
		return storage.Transcript{}, nil, err
	}

	stats := model.NewStatistics()
	resp, err := a.ollamaClient().Chat(ctx, ollama.ChatRequest{
		Model:     opts.Model,
		Messages:  h.ToOllamaMessages(),
		Options:   opts.Params,
		KeepAlive: opts.KeepAlive,
	})
	if err != nil {
		return storage.Transcript{}, nil, err
	}
	stats.PromptTokens = resp.PromptEvalCount
	stats.Finalize(resp.EvalCount)

	reply := model.NewTextMessage(model.RoleAssistant, resp.Message.Content)
	reply.Stats = stats
	if err := h.Append(reply); err != nil {
		return storage.Transcript{}, nil, err
	}

	now := time.Now()
	return storage.Transcript{
		ID:       "sess_" + uuid.NewString(),
		Title:    h.Title(),
		Model:    opts.Model,
		Created:  now,
		Updated:  now,
		Messages: h.Messages(),
	}, reply, nil
}

// printWhole prints a complete reply the way a stream of it would print.
func (a *app) printWhole(cmd *cobra.Command, reply *model.Message, f askFlags) {
	p := newStreamPrinter(a.printerOptions(cmd, f))
	p.Done(reply.Snapshot())
}

func (a *app) printerOptions(cmd *cobra.Command, f askFlags) printerOptions {
	opts := printerOptions{
		Out:   cmd.OutOrStdout(),
		Theme: styles.NewTheme(styles.NewRenderer(cmd.ErrOrStderr()), a.cfg.UI.Theme),
	}
	if f.showReasoning {
		opts.Reasoning = cmd.ErrOrStderr()
	}
	if flagOr(cmd, "markdown", f.markdown, a.cfg.Chat.Markdown) && isFile(opts.Out) && IsStdoutTTY() {
		if md, err := newMarkdownRenderer(); err == nil {
			opts.Markdown = md
		}
	}
	if isFile(cmd.ErrOrStderr()) && IsStderrTTY() {
		opts.Status = cmd.ErrOrStderr()
	}
	return opts
}

func isFile(w io.Writer) bool {
	_, ok := w.(*os.File)
	return ok
}
