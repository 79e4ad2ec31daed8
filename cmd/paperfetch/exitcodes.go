package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success (warnings included)
	ExitError       = 1 // General error (no candidates, failed gate, runtime failure)
	ExitConfigError = 2 // Configuration error (missing llm config, bad flags)
)
