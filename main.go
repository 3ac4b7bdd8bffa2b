package main

import (
	"os"

	"github.com/evtracker/evtrack/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
