// Command flowledger anchors prime exponent moves and inspects the ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/flowledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
