// Package cmd holds the screenrec command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the screenrec CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "screenrec",
		Short: "Record your screen to WebM",
		Long: `screenrec captures a display, encodes it with VP8 or VP9 and writes
a WebM file. Recording stops on a hotkey, Enter, Ctrl-C or after a fixed
duration.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRecordCmd(),
		newDisplaysCmd(),
		newVersionCmd(),
		newUpdateCmd(),
	)

	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}
