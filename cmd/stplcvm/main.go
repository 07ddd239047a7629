// Command stplcvm loads a compiled bytecode container and executes it
// under the scan-cycle scheduler (spec.md §6 "CLI (VM)").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const vmVersion = "0.1.0"

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
		Use:           "stplcvm",
		Short:         "Structured Text bytecode virtual machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&verbosity, "verbose", "v", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchmarkCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the VM version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("ironplcvm version %s\n", vmVersion)
			return nil
		},
	}
}
