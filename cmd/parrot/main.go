package main

import (
	"os"

	"github.com/hashtagcpt/psychophysics-parrot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
