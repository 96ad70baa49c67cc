package main

import (
	"os"

	"github.com/ilumeo/aimarketing/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
