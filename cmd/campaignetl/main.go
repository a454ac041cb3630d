package main

import (
	"os"
)

func main() {
	rc := NewRootCommand(os.Stdout, os.Stderr)
	if err := rc.Execute(); err != nil {
		os.Exit(1)
	}
}
