package main

import (
	"os"

	"github.com/flexcompute/flexd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
