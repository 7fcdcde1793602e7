// Command xferctl is a thin CLI front-end exercising the transfer engine's
// four public facades end to end.
package main

import (
	"os"

	"github.com/rescale/xferengine/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
