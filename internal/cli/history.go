// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Saved conversations.
//
// Command: history [list|show|search|delete|export]
// Short:   Browse saved conversations
//
// Conversation IDs may be shortened to any unique prefix, with or without
// the "sess_" prefix.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/thinkchat/internal/export"
	"github.com/jeranaias/thinkchat/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse saved conversations",
		Example: `  $ thinkchat history list --limit 10
  $ thinkchat history search "goroutine leak"
  $ thinkchat history show 3f2a
  $ thinkchat history export 3f2a --format html --open`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return usageErrorf("--limit must not be negative")
			}
			return a.withStore(func(s *storage.Store) error {
				sums, err := s.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				printList(cmd.OutOrStdout(), sums)
				return nil
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of conversations (0 for all)")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "search QUERY...",
		Short: "Find conversations whose messages contain the query",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *storage.Store) error {
				sums, err := s.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				printList(cmd.OutOrStdout(), sums)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print a conversation",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *storage.Store) error {
				t, err := s.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %s  %s\n", storage.ShortID(t.ID), t.Model, t.Title)
				for _, msg := range t.Messages {
					export.Mirror(out, msg)
				}
				fmt.Fprintln(out)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *storage.Store) error {
				id, err := s.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", storage.ShortID(id))
				return nil
			})
		},
	})

	cmd.AddCommand(newHistoryExportCmd(a))
	return cmd
}

func newHistoryExportCmd(a *app) *cobra.Command {
	opts := export.DefaultOptions()
	var format string
	var noReasoning bool

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write a conversation to a markdown, html or json file",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.IncludeReasoning = !noReasoning
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return usageErrorf("%v", err)
			}
			return a.withStore(func(s *storage.Store) error {
				t, err := s.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path, err := export.ExportToFile(t, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "markdown, html or json")
	cmd.Flags().StringVarP(&opts.OutputDir, "out", "o", opts.OutputDir, "directory to write to")
	cmd.Flags().BoolVar(&opts.OpenAfterExport, "open", false, "open the file afterwards")
	cmd.Flags().StringVar(&opts.Theme, "theme", opts.Theme, "html theme: light or dark")
	cmd.Flags().BoolVar(&noReasoning, "no-reasoning", false, "leave reasoning blocks out")
	return cmd
}

func printList(w io.Writer, sums []storage.Summary) {
	fmt.Fprintln(w, strings.TrimRight(storage.FormatList(sums), "\n"))
}

// withStore opens the transcript store for the duration of fn.
func (a *app) withStore(fn func(*storage.Store) error) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
