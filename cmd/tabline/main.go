package main

import (
	"os"

	"github.com/Additional-Code/tabline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
