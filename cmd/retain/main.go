// Package main provides the entry point for the retain CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jamesainslie/retain/pkg/retain/config"
)

// Exit codes.
const (
	exitOK            = 0
	exitError         = 1
	exitDefaultConfig = 2
)

func main() {
	os.Exit(exitCode(Execute()))
}

// exitCode maps the error returned by a command to the process exit code
// and reports it on stderr.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrDefaultWritten):
		fmt.Fprintf(os.Stderr, "%v\nA default configuration file was created. Edit it and run retain again.\n", err)
		return exitDefaultConfig
	default:
		printError("%v", err)
		return exitError
	}
}
