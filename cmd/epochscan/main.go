package main

import (
	"fmt"
	"os"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "epochscan:", err)
		os.Exit(1)
	}
}
