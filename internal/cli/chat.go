// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat for terminals where the full screen UI is not
// wanted (remote shells, screen readers, scrollback).
//
// Command: chat
// Short:   Chat in a plain line-by-line REPL
//
// Flags:
//   --resume ID          Continue a saved conversation
//   --markdown           Render answers as markdown (default from chat.markdown)
//   --show-reasoning     Print reasoning blocks (default from chat.show_reasoning)
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/config"
	"github.com/jeranaias/thinkchat/internal/export"
	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/params"
	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/storage"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// =============================================================================
// COMMAND
// =============================================================================

type chatFlags struct {
	resume        string
	markdown      bool
	showReasoning bool
}

func newChatCmd(a *app) *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in a plain line-by-line REPL",
		Long: `Chat with the model line by line. Replies stream to stdout as they arrive;
reasoning blocks are hidden behind a "thinking…" indicator unless
--show-reasoning is given. Type /help for commands.`,
		Example: `  # Start a conversation with the default model
  $ thinkchat chat

  # Show the model's reasoning and render answers as markdown
  $ thinkchat chat --show-reasoning --markdown

  # Continue a saved conversation
  $ thinkchat chat --resume 3f2a`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.resume, "resume", "", "continue the saved conversation with this ID")
	cmd.Flags().BoolVar(&f.markdown, "markdown", false, "render answers as markdown")
	cmd.Flags().BoolVar(&f.showReasoning, "show-reasoning", false, "print reasoning blocks")
	return cmd
}

func (a *app) runChat(cmd *cobra.Command, f chatFlags) error {
	ctx := cmd.Context()
	if err := a.connect(ctx); err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var sess *session.Session
	if f.resume != "" {
		sess, err = a.resumeSession(ctx, store, f.resume)
	} else {
		sess, err = a.newSession(a.cfg.DefaultModel)
	}
	if err != nil {
		return err
	}

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	a.watchParams(wctx, sess)

	r := &repl{
		app:           a,
		sess:          sess,
		store:         store,
		in:            newLineInput(),
		out:           cmd.OutOrStdout(),
		errOut:        cmd.ErrOrStderr(),
		theme:         styles.NewTheme(styles.NewRenderer(cmd.OutOrStdout()), a.cfg.UI.Theme),
		showReasoning: flagOr(cmd, "show-reasoning", f.showReasoning, a.cfg.Chat.ShowReasoning),
		showStats:     a.cfg.UI.ShowStats,
		autoSave:      a.cfg.Chat.AutoSave,
	}
	if flagOr(cmd, "markdown", f.markdown, a.cfg.Chat.Markdown) && IsStdoutTTY() {
		if md, err := newMarkdownRenderer(); err == nil {
			r.markdown = md
		}
	}
	if IsStderrTTY() {
		r.status = os.Stderr
	}
	defer r.in.Close()

	return r.run(ctx)
}

// flagOr returns the flag value when the user set it, def otherwise.
func flagOr(cmd *cobra.Command, name string, v, def bool) bool {
	if cmd.Flags().Changed(name) {
		return v
	}
	return def
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputReader reads one line of user input.
type inputReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// lineInput provides line editing and persistent input history.
type lineInput struct {
	line        *liner.State
	historyFile string
}

func newLineInput() *lineInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &lineInput{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(in.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return in
}

// ReadInput reads a line, adding non-empty input to the history.
func (l *lineInput) ReadInput(prompt string) (string, error) {
	input, err := l.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		l.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (owner read/write only) and restores the terminal.
func (l *lineInput) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			l.line.WriteHistory(f)
			f.Close()
		}
	}
	l.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	app   *app
	sess  *session.Session
	store *storage.Store
	in    inputReader

	out    io.Writer
	errOut io.Writer
	status io.Writer
	theme  *styles.Theme

	markdown      *glamour.TermRenderer
	showReasoning bool
	showStats     bool
	autoSave      bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (r *repl) run(ctx context.Context) error {
	r.printWelcome()

	// Ctrl+C while a reply streams stops the reply. At the prompt the line
	// editor owns the terminal and reports it as ErrPromptAborted.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		for range sigs {
			if r.stopReply() {
				fmt.Fprintln(r.errOut, "\n"+r.theme.Notice.Render("[stopped]"))
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return r.finish()
		}
		input, err := r.in.ReadInput(r.prompt())
		if err != nil {
			// Ctrl+C, Ctrl+D and closed stdin all end the chat.
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				fmt.Fprintf(r.errOut, "%s %v\n", r.theme.Error.Render("[Error]"), err)
			}
			fmt.Fprintln(r.out)
			return r.finish()
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			more, err := r.command(ctx, input)
			if err != nil {
				fmt.Fprintf(r.errOut, "%s %v\n", r.theme.Error.Render("[Error]"), err)
				if h := hint(err); h != "" {
					fmt.Fprintln(r.errOut, "  "+h)
				}
			}
			if !more {
				return r.finish()
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return r.finish()
		}

		if err := r.send(ctx, input); err != nil {
			fmt.Fprintf(r.errOut, "%s %v\n", r.theme.Error.Render("[Error]"), err)
			if h := hint(err); h != "" {
				fmt.Fprintln(r.errOut, "  "+h)
			}
		}
	}
}

func (r *repl) prompt() string {
	return r.sess.Avatar() + " > "
}

func (r *repl) printWelcome() {
	fmt.Fprintf(r.out, "%s %s %s\n",
		r.theme.HeaderTitle.Render("thinkchat"),
		r.sess.Icon(),
		r.theme.HeaderModel.Render(r.sess.Model()))
	if n := r.sess.History().Len(); n > 0 {
		fmt.Fprintf(r.out, "%s\n", r.theme.Help.Render(fmt.Sprintf("Resumed %s (%d messages)", storage.ShortID(r.sess.ID()), n)))
	}
	fmt.Fprintln(r.out, r.theme.Help.Render("Type /help for commands, /quit or Ctrl+D to leave."))
	fmt.Fprintln(r.out)
}

// send streams one reply. A reply stopped with Ctrl+C keeps what arrived.
func (r *repl) send(ctx context.Context, prompt string) error {
	if r.sess.Model() == "" {
		return session.ErrNoModel
	}
	sctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	opts := printerOptions{
		Out:      r.out,
		Status:   r.status,
		Markdown: r.markdown,
		Theme:    r.theme,
	}
	if r.showReasoning {
		opts.Reasoning = r.out
	}
	printer := newStreamPrinter(opts)

	fmt.Fprintf(r.out, "\n%s\n", r.theme.RoleHeader(model.RoleAssistant).Render(r.sess.Icon()+" "+model.RoleAssistant.DisplayName()))
	reply, err := r.sess.Send(sctx, prompt, printer)
	if reply != nil && r.showStats {
		if stats := reply.FormatStats(); stats != "" {
			fmt.Fprintln(r.out, r.theme.Stats.Render(stats))
		}
	}
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}
	if r.autoSave {
		return r.save(ctx, true)
	}
	return nil
}

// stopReply cancels the streaming reply, if any.
func (r *repl) stopReply() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// finish saves unsaved changes on the way out when autosave is on.
func (r *repl) finish() error {
	if r.autoSave && r.sess.IsDirty() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.save(ctx, true)
	}
	return nil
}

func (r *repl) save(ctx context.Context, quiet bool) error {
	if r.sess.History().LastOf(model.RoleUser) == nil {
		if !quiet {
			fmt.Fprintln(r.out, r.theme.Notice.Render("Nothing to save yet"))
		}
		return nil
	}
	changed, err := r.store.Save(ctx, r.sess.Transcript())
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	r.sess.MarkClean()
	if !quiet {
		msg := "Already saved"
		if changed {
			msg = "Saved as " + storage.ShortID(r.sess.ID())
		}
		fmt.Fprintln(r.out, r.theme.Notice.Render(msg))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `Commands:
  /help                 Show this help
  /quit                 Leave the chat (also /exit, Ctrl+D)
  /clear                Forget the conversation, keeping system messages
  /system [TEXT]        Show or add a system message
  /model [NAME]         Show or switch the model
  /params [KEY=VALUE…]  Show or change sampling parameters
  /reasoning            Toggle printing of reasoning blocks
  /stats                Toggle timing and token counts
  /save                 Save the conversation
  /history [N]          List saved conversations
  /export [FORMAT]      Export to markdown, html or json
  /dump                 Print every message of the conversation`

// command runs a slash command and reports whether the REPL continues.
func (r *repl) command(ctx context.Context, input string) (bool, error) {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/help", "/?":
		fmt.Fprintln(r.out, replHelp)
	case "/quit", "/exit", "/q":
		return false, nil
	case "/clear":
		r.sess.ClearChat()
		fmt.Fprintln(r.out, r.theme.Notice.Render("Chat cleared"))
	case "/system":
		if rest == "" {
			if msg := r.sess.SystemMessage(); msg != "" {
				fmt.Fprintln(r.out, msg)
			} else {
				fmt.Fprintln(r.out, r.theme.Help.Render("No system message"))
			}
			return true, nil
		}
		return true, r.sess.SetSystemMessage(rest)
	case "/model":
		return true, r.switchModel(rest)
	case "/params":
		return true, r.params(rest)
	case "/reasoning":
		r.showReasoning = !r.showReasoning
		fmt.Fprintln(r.out, r.theme.Notice.Render("Reasoning "+onOff(r.showReasoning)))
	case "/stats":
		r.showStats = !r.showStats
		fmt.Fprintln(r.out, r.theme.Notice.Render("Stats "+onOff(r.showStats)))
	case "/save":
		return true, r.save(ctx, false)
	case "/history":
		limit := 20
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil || n <= 0 {
				return true, usageErrorf("/history takes a positive count, got %q", rest)
			}
			limit = n
		}
		list, err := r.store.List(ctx, limit)
		if err != nil {
			return true, err
		}
		printList(r.out, list)
	case "/export":
		return true, r.export(rest)
	case "/dump":
		r.sess.DumpMessages(r.out)
		fmt.Fprintln(r.out)
	default:
		return true, usageErrorf("unknown command %s (try /help)", name)
	}
	return true, nil
}

func (r *repl) switchModel(name string) error {
	if name == "" {
		fmt.Fprintf(r.out, "%s %s\n", r.sess.Icon(), r.sess.Model())
		return nil
	}
	opts, err := r.app.sessionOptions(name)
	if err != nil {
		return err
	}
	r.sess.SetModel(name, opts.Params, opts.Icon)
	fmt.Fprintln(r.out, r.theme.Notice.Render("Switched to "+name))
	return nil
}

// params shows the session's sampling options or applies KEY=VALUE pairs,
// storing the result for the model.
func (r *repl) params(args string) error {
	current := params.Builtin().Options
	if p := r.sess.Params(); p != nil {
		current = *p
	}
	if args == "" {
		fmt.Fprint(r.out, formatParams(current))
		return nil
	}

	updated, err := applyAssignments(current, strings.Fields(args))
	if err != nil {
		return err
	}
	r.sess.SetParams(&updated)

	ps, err := r.app.paramsStore()
	if err != nil {
		return err
	}
	if _, err := ps.Update(r.sess.Model(), updated); err != nil {
		return fmt.Errorf("store parameters: %w", err)
	}
	fmt.Fprint(r.out, formatParams(updated))
	return nil
}

func (r *repl) export(format string) error {
	if format == "" {
		format = "markdown"
	}
	opts := export.DefaultOptions()
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return usageErrorf("%v", err)
	}
	path, err := export.ExportToFile(r.sess.Transcript(), exporter, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, r.theme.Notice.Render("Exported to "+path))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
