package main

import (
	"os"

	"github.com/absweep/absweep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
