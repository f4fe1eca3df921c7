// ABOUTME: Entry point for the pcmenc command
// ABOUTME: Delegates to the cobra command tree
package main

import (
	"os"

	"github.com/Resonate-Protocol/pcmenc/cmd/pcmenc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
