// Command stplcc is the Structured Text compiler driver: it runs the
// analyzer pipeline over source files and renders diagnostics (spec.md §6
// "CLI (compiler)"). Code generation and container emission are invoked as
// library calls from tests, not from this binary — the original project
// draws the same line between `plc2x` (diagnostics only) and the separate
// vm/codegen crates.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbosity string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stplcc",
		Short:         "Structured Text compiler: semantic analysis and diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&verbosity, "verbose", "v", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newCheckCmd())
	root.AddCommand(newLSPCmd())
	return root
}
