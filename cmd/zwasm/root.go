package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "zwasm",
		Short: "A standalone WebAssembly runtime",
	}
	root.AddCommand(
		newRunCommand(),
		newInspectCommand(),
		newValidateCommand(),
		newFeaturesCommand(),
		newVersionCommand(),
	)
	return root
}
