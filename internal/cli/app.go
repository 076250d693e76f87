// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/config"
	"github.com/jeranaias/thinkchat/internal/logging"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/params"
	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/storage"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	model      string
	ollamaURL  string
	logLevel   string
	verbose    bool
}

// app carries what the commands share: the loaded config and the clients
// built from it. It is set up once in the root command's PersistentPreRunE.
type app struct {
	flags globalFlags

	cfg       *config.Config
	logCloser io.Closer
	client    *ollama.Client
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the config, applies flag overrides and installs the logger.
// Logs go to the log file; --verbose sends them to stderr for the line
// commands. The chat screen owns the terminal and always logs to the file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	if a.flags.model != "" {
		cfg.DefaultModel = a.flags.model
	}
	if a.flags.ollamaURL != "" {
		cfg.Ollama.URL = a.flags.ollamaURL
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.verbose && !cmd.Flags().Changed("log-level") {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Migrate(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	a.cfg = cfg
	config.SetGlobal(cfg)

	out := logging.ToFile
	if a.flags.verbose && cmd != cmd.Root() {
		out = logging.ToStderr
	}
	closer, err := logging.Setup(cfg.Log, out)
	if err != nil {
		// A log file we cannot open must not stop the command.
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (logging disabled)\n", err)
		closer, _ = logging.Setup(cfg.Log, logging.Discard)
	}
	a.logCloser = closer

	slog.Debug("command starting", "command", cmd.CommandPath(), "model", cfg.DefaultModel)
	return nil
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if a.flags.configPath != "" {
		return config.LoadFromPath(a.flags.configPath)
	}
	cfg, err := config.Load()
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
	}
	return cfg, nil
}

func (a *app) close() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// ollamaClient returns the shared client, creating it on first use.
func (a *app) ollamaClient() *ollama.Client {
	if a.client == nil {
		a.client = ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:   a.cfg.Ollama.URL,
			Timeout:   time.Duration(a.cfg.Ollama.TimeoutSecs) * time.Second,
			KeepAlive: a.cfg.Ollama.KeepAlive,
		})
	}
	return a.client
}

// connect starts the server when auto_start is on. Otherwise errors surface
// from the first request.
func (a *app) connect(ctx context.Context) error {
	if !a.cfg.Ollama.AutoStart {
		return nil
	}
	return a.ollamaClient().EnsureRunning(ctx)
}

func (a *app) openStore() (*storage.Store, error) {
	opts := storage.DefaultOptions(a.cfg.Storage.HistoryDB)
	opts.Logger = slog.Default()
	return storage.Open(opts)
}

func (a *app) paramsStore() (*params.Store, error) {
	return params.NewStore(a.cfg.Storage.ParamsDir)
}

// sessionOptions builds session options for modelName from its stored
// parameters, writing the defaults the first time a model is used.
func (a *app) sessionOptions(modelName string) (session.Options, error) {
	if modelName == "" {
		return session.Options{}, params.ErrNoModel
	}
	ps, err := a.paramsStore()
	if err != nil {
		return session.Options{}, err
	}
	p, err := ps.Defaults(modelName)
	if err != nil {
		return session.Options{}, fmt.Errorf("load parameters for %s: %w", modelName, err)
	}
	opts := params.Validate(p.Options)
	return session.Options{
		Model:     modelName,
		Params:    &opts,
		Icon:      p.Icon,
		Mirror:    a.mirror(),
		KeepAlive: a.cfg.Ollama.KeepAlive,
		Logger:    slog.Default(),
	}, nil
}

// mirror returns stderr when chat.mirror is on and stderr is redirected.
// On a terminal the dump would interleave with the chat itself.
func (a *app) mirror() io.Writer {
	if !a.cfg.Chat.Mirror || IsStderrTTY() {
		return nil
	}
	return os.Stderr
}

// newSession starts a fresh conversation with the configured system message.
func (a *app) newSession(modelName string) (*session.Session, error) {
	opts, err := a.sessionOptions(modelName)
	if err != nil {
		return nil, err
	}
	sess := session.New(a.ollamaClient(), opts)
	if msg := a.cfg.Chat.SystemMessage; msg != "" {
		if err := sess.SetSystemMessage(msg); err != nil {
			return nil, err
		}
		sess.MarkClean()
	}
	return sess, nil
}

// resumeSession reopens a stored conversation. An explicit --model wins over
// the model the conversation was saved with.
func (a *app) resumeSession(ctx context.Context, store *storage.Store, ref string) (*session.Session, error) {
	t, err := store.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	modelName := t.Model
	if a.flags.model != "" || modelName == "" {
		modelName = a.cfg.DefaultModel
	}
	opts, err := a.sessionOptions(modelName)
	if err != nil {
		return nil, err
	}
	return session.Resume(a.ollamaClient(), t, opts)
}

// watchParams applies edits made to the session model's parameter file by
// other programs until ctx is done.
func (a *app) watchParams(ctx context.Context, sess *session.Session) {
	ps, err := a.paramsStore()
	if err != nil {
		slog.Warn("params watch disabled", "error", err)
		return
	}
	go func() {
		err := ps.Watch(ctx, 0, func(key string) {
			current := sess.Model()
			if key != params.ModelKey(current) {
				return
			}
			p, err := ps.Defaults(current)
			if err != nil {
				slog.Warn("reload parameters", "model", current, "error", err)
				return
			}
			opts := params.Validate(p.Options)
			sess.SetModel(current, &opts, p.Icon)
			slog.Info("parameters reloaded", "model", current)
		})
		if err != nil {
			slog.Warn("params watch stopped", "error", err)
		}
	}()
}

