// Package main provides the paperfetch CLI entry point.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperfetch",
	Short: "Turn a keyword into a formatted bibliographic citation",
	Long: `paperfetch turns a free-text keyword into one formatted citation
entry plus, optionally, a downloaded PDF of the matched paper.

It asks a language model for the likely original paper titles, searches
arXiv, OpenAlex and Semantic Scholar, picks the best candidate, cross-
checks the metadata on a second provider and appends a GB/T 7714-style
citation line to a dated text file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}

// exitError carries a specific process exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }
