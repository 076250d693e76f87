// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Models installed on the Ollama server.
//
// Command: models
// Short:   List the models available on the Ollama server
//
// Flags:
//   --json    Print the server's model list as JSON
package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/params"
	"github.com/jeranaias/thinkchat/internal/util"
)

func newModelsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls"},
		Short:   "List the models available on the Ollama server",
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(cmd.Context()); err != nil {
				return err
			}
			models, err := a.ollamaClient().ListModels(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			}
			if len(models) == 0 {
				fmt.Fprintln(out, "No models installed. Pull one with 'ollama pull <model>'.")
				return nil
			}

			icons := a.storedIcons()
			fmt.Fprint(out, formatModels(models, icons, a.cfg.DefaultModel))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the model list as JSON")
	return cmd
}

// storedIcons maps model keys to their stored avatar. Models never used have
// no entry.
func (a *app) storedIcons() map[string]string {
	icons := map[string]string{}
	ps, err := a.paramsStore()
	if err != nil {
		return icons
	}
	keys, err := ps.Keys()
	if err != nil {
		return icons
	}
	for _, k := range keys {
		if p, err := ps.Defaults(k); err == nil {
			icons[k] = p.Icon
		}
	}
	return icons
}

// formatModels renders the model table. The default model is starred.
func formatModels(models []ollama.ModelInfo, icons map[string]string, current string) string {
	var sb strings.Builder
	sb.WriteString("   " + util.PadWidth("NAME", 32) + " " + util.PadWidth("SIZE", 9) + " " +
		util.PadWidth("PARAMS", 8) + " " + util.PadWidth("QUANT", 8) + " MODIFIED\n")

	for _, m := range models {
		mark := " "
		if m.Name == current {
			mark = "*"
		}
		icon, ok := icons[params.ModelKey(m.Name)]
		if !ok {
			icon = " "
		}
		sb.WriteString(mark + util.PadWidth(icon, 2) + util.PadWidth(util.TruncateWidth(m.Name, 32), 32) + " " +
			util.PadWidth(m.FormatSize(), 9) + " " +
			util.PadWidth(m.Details.ParameterSize, 8) + " " +
			util.PadWidth(m.Details.QuantizationLevel, 8) + " " +
			humanize.Time(m.ModifiedAt) + "\n")
	}
	return sb.String()
}
