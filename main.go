package main

import (
	"os"

	"github.com/sherine-k/rmsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
