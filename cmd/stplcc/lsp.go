package main

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrNotImplemented is returned by the lsp verb. No LSP transport library
// exists anywhere in the retrieved corpus to ground a real implementation
// on (SPEC_FULL.md §D), so this is a documented stub rather than a silent
// no-op.
var ErrNotImplemented = errors.New("lsp: not implemented")

func newLSPCmd() *cobra.Command {
	var stdio bool
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Language-server mode (stub)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdio {
				return errors.New("lsp: only --stdio transport is specified")
			}
			return ErrNotImplemented
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", false, "accept LSP messages on stdin/stdout")
	return cmd
}
