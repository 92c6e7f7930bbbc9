// Command paperqa answers questions about, and summarises, a single
// document. It provides one-shot CLI commands, an interactive terminal chat
// and an HTTP API over the same pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/paperqa-go/cmd/paperqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
