// Command microgptseq runs conditional prompt sequences.
package main

import (
	"fmt"
	"os"

	"github.com/dbddv01/MicroGptSequence/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
