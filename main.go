package main

import (
	"os"

	"github.com/conneroisu/bbcode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
