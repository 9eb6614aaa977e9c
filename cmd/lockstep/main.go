package main

import (
	"os"

	"github.com/lockstep-dev/lockstep/cmd/lockstep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
