// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/ui/chat"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the command tree. Running it without a subcommand opens
// the chat screen.
func NewRootCmd() *cobra.Command {
	a := &app{}
	var (
		resume  string
		noColor bool
	)

	root := &cobra.Command{
		Use:   "thinkchat",
		Short: "Chat with local Ollama models, reasoning kept apart",
		Long: `A chat front-end for models served by a local Ollama. Replies stream as they
are generated; reasoning inside <think>, <thinking> or <reasoning> tags is shown
apart from the answer and collapsed once it is finished.`,
		Example: `  # Open the chat screen with the default model
  $ thinkchat

  # Use another model for this run
  $ thinkchat -m qwen3:14b

  # Continue a saved conversation
  $ thinkchat --resume 3f2a

  # One-shot question, answer on stdout
  $ thinkchat ask "What is a monad?"`,
		Version:       Version,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				os.Setenv("NO_COLOR", "1")
			}
			lipgloss.SetColorProfile(GetColorProfile())
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd, resume)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Msg: err.Error()}
	})
	root.SetVersionTemplate(formatVersion())

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "settings file (default $THINKCHAT_HOME/config.toml)")
	pf.StringVarP(&a.flags.model, "model", "m", "", "model to chat with (overrides default_model)")
	pf.StringVar(&a.flags.ollamaURL, "ollama-url", "", "Ollama API URL (overrides ollama.url)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log to stderr at debug level (line commands)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	root.Flags().StringVar(&resume, "resume", "", "continue the saved conversation with this ID")

	root.AddCommand(
		newChatCmd(a),
		newAskCmd(a),
		newModelsCmd(a),
		newParamsCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	root.SetUsageTemplate(usageTemplate())
	root.SetHelpTemplate(usageTemplate())
	return root
}

// usageArgs reports argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &UsageError{Msg: err.Error()}
		}
		return nil
	}
}

func usageTemplate() string {
	bold := lipgloss.NewStyle().Bold(true)
	return `{{if .Long}}{{.Long}}

{{end}}` + bold.Render("USAGE") + `
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

` + bold.Render("ALIASES") + `
  {{.NameAndAliases}}{{end}}

{{if .HasExample}}` + bold.Render("EXAMPLES") + `
{{.Example}}

{{end}}{{if .HasAvailableSubCommands}}` + bold.Render("COMMANDS") + `{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableLocalFlags}}` + bold.Render("OPTIONS") + `
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}` + bold.Render("GLOBAL OPTIONS") + `
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
}

// =============================================================================
// CHAT SCREEN
// =============================================================================

func (a *app) runTUI(cmd *cobra.Command, resume string) error {
	if err := RequiresTTY("open the chat screen"); err != nil {
		return err
	}
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
	if resume != "" {
		sess, err = a.resumeSession(ctx, store, resume)
	} else {
		sess, err = a.newSession(a.cfg.DefaultModel)
	}
	if err != nil {
		return err
	}

	wctx, stop := context.WithCancel(ctx)
	defer stop()
	a.watchParams(wctx, sess)

	slog.Info("chat screen starting", "session", sess.ID(), "model", sess.Model())
	return chat.Run(ctx, chat.Options{
		Session:       sess,
		Store:         store,
		AutoSave:      a.cfg.Chat.AutoSave,
		Checker:       a.ollamaClient(),
		Theme:         styles.NewTheme(styles.NewRenderer(os.Stdout), a.cfg.UI.Theme),
		ShowReasoning: a.cfg.Chat.ShowReasoning,
		ShowStats:     a.cfg.UI.ShowStats,
		FPS:           a.cfg.UI.RenderFPS,
		Logger:        slog.Default(),
	})
}

// =============================================================================
// EXECUTE
// =============================================================================

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	return execute(ctx, NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	code := ExitCode(err)
	if errors.Is(err, context.Canceled) {
		return code
	}

	fmt.Fprintln(stderr, styles.RenderError(err.Error()))
	if h := hint(err); h != "" {
		fmt.Fprintln(stderr, "  "+h)
	}
	if code == ExitUsageError {
		fmt.Fprintf(stderr, "  Run '%s --help' for usage.\n", root.Name())
	}
	return code
}
