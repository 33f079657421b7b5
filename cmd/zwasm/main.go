// Command zwasm is the thin CLI front-end spec.md §6 describes: it parses
// flags, reads the .wasm file, and calls into the zwasm library — no
// protocol logic of its own lives here (spec.md §1 non-goals: "CLI argument
// parsing, file I/O, terminal formatting"). Built on cobra/pflag rather
// than the teacher's stdlib `flag` package, grounded on grafana-k6's
// multi-subcommand Cobra CLI (SPEC_FULL.md §2 domain stack) since this
// surface has five real subcommands with nested flags.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
