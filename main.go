package main

import (
	"os"

	"github.com/flashforge/flasharb/cmd"
	"github.com/flashforge/flasharb/utils"
)

func main() {
	defer utils.CleanupLogger()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
