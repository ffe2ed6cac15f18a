// iamsync reconciles IAM users with a declared desired state.
package main

import (
	"os"

	"github.com/steveyegge/iamsync/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
