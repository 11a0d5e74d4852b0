package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for playcheck
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playcheck",
		Short: "Verify the examples in literate code documents",
		Long: `Playcheck runs the code snippets embedded in literate documents
(playground-style source files, markdown guides) in order, threading
the bindings of each snippet into the next, and checks every result
annotation against the output the snippet actually printed.

A document passes when every annotation matches. Failures carry the
document path, block id, line range and a diff of expected vs actual.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// main prints errors once with the exit status
		SilenceErrors: true,
	}

	cmd.AddCommand(NewVerifyCommand())
	cmd.AddCommand(NewExtractCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
