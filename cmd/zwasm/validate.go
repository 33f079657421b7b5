package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zwasm/zwasm"
	"github.com/zwasm/zwasm/internal/wasmdebug"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE.wasm",
		Short: "Decode and validate a Wasm binary without instantiating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt := zwasm.NewRuntime(nil)
			if _, cerr := rt.CompileModule(bin); cerr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), wasmdebug.FormatError(args[0], asWasmError(cerr)))
				os.Exit(1)
			}
			return nil
		},
	}
}
