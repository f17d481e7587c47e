// Package main provides the spectrace binary entry point.
// Spectrace traces requirement rules from specification documents to the
// code that implements, verifies, and depends on them.
package main

import (
	"fmt"
	"os"
	"runtime"
)

const (
	// Version and BuildTime are overridden at link time for releases.
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "spectrace"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
