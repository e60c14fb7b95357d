package main

import (
	"os"

	"github.com/trustedanalytics/platform-parent/src/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
