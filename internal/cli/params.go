// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// params.go - Per-model sampling parameters.
//
// Command: params [list|show|set|reset|icon]
// Short:   Show or change the sampling parameters stored per model
//
// Examples:
//   thinkchat params list
//   thinkchat params show qwen3:8b
//   thinkchat params set qwen3 temperature=0.6 num_ctx=16000
//   thinkchat params reset qwen3
//   thinkchat params icon qwen3 🐉
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/params"
)

// =============================================================================
// HELPERS
// =============================================================================

// applyAssignments applies KEY=VALUE pairs to base and clamps the result.
func applyAssignments(base ollama.Options, pairs []string) (ollama.Options, error) {
	if len(pairs) == 0 {
		return base, usageErrorf("expected KEY=VALUE pairs")
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return base, usageErrorf("expected KEY=VALUE, got %q", pair)
		}
		if err := params.Set(&base, strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
			return base, &UsageError{Msg: err.Error()}
		}
	}
	return params.Validate(base), nil
}

// formatParams lists every adjustable parameter with its value and range.
func formatParams(o ollama.Options) string {
	var sb strings.Builder
	for _, r := range params.Ranges {
		v, _ := params.Get(o, r.Name)
		fmt.Fprintf(&sb, "  %-15s %-8s (%g to %g)\n", r.Name, v, r.Min, r.Max)
	}
	return sb.String()
}

// =============================================================================
// COMMANDS
// =============================================================================

func newParamsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Show or change the sampling parameters stored per model",
		Long: `Sampling parameters are stored per model family in the params directory,
one JSON file per family ("qwen3:8b" and "qwen3:14b" share "qwen3.json").
A model's file is created with the built-in defaults the first time it is used.`,
		Example: `  $ thinkchat params show qwen3:8b
  $ thinkchat params set qwen3 temperature=0.6 num_ctx=16000
  $ thinkchat params reset qwen3`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List models with stored parameters",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.paramsStore()
			if err != nil {
				return err
			}
			keys, err := ps.Keys()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored parameters.")
				return nil
			}
			for _, k := range keys {
				p, err := ps.Defaults(k)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p.Icon, k)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [MODEL]",
		Short: "Show a model's parameters",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, name, err := a.loadParams(args)
			if err != nil {
				return err
			}
			ps, _ := a.paramsStore()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", p.Icon, name, ps.Path(name))
			fmt.Fprint(out, formatParams(p.Options))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set MODEL KEY=VALUE...",
		Short: "Change parameters; values are clamped to their range",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, name, err := a.loadParams(args[:1])
			if err != nil {
				return err
			}
			updated, err := applyAssignments(p.Options, args[1:])
			if err != nil {
				return err
			}
			ps, err := a.paramsStore()
			if err != nil {
				return err
			}
			if _, err := ps.Update(name, updated); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatParams(updated))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [MODEL]",
		Short: "Restore the built-in parameters, keeping the icon",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.modelArg(args)
			if err != nil {
				return err
			}
			ps, err := a.paramsStore()
			if err != nil {
				return err
			}
			p, err := ps.Reset(name)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatParams(p.Options))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "icon MODEL ICON",
		Short: "Set the avatar shown for a model's replies",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.paramsStore()
			if err != nil {
				return err
			}
			if err := ps.SetIcon(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[1], params.ModelKey(args[0]))
			return nil
		},
	})

	return cmd
}

// modelArg returns the model named in args, or the default model.
func (a *app) modelArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.DefaultModel == "" {
		return "", params.ErrNoModel
	}
	return a.cfg.DefaultModel, nil
}

func (a *app) loadParams(args []string) (params.Params, string, error) {
	name, err := a.modelArg(args)
	if err != nil {
		return params.Params{}, "", err
	}
	ps, err := a.paramsStore()
	if err != nil {
		return params.Params{}, "", err
	}
	p, err := ps.Defaults(name)
	return p, name, err
}
