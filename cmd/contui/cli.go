// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Config string `short:"c" help:"Config file path (default: ./contui.toml)"`

	Chat    ChatCmd    `cmd:"" default:"1" help:"Interactive chat (default)"`
	Run     RunCmd     `cmd:"" help:"Run one request without the TUI"`
	Parse   ParseCmd   `cmd:"" help:"Show the actions found in a model response"`
	Replay  ReplayCmd  `cmd:"" help:"Replay a saved session transcript"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// ChatCmd starts the interactive terminal UI.
type ChatCmd struct {
	NoWatch bool `help:"Do not watch the working directory for changes"`
}

// RunCmd sends a single request and prints progress to stdout.
type RunCmd struct {
	Prompt string `arg:"" help:"Request to send"`
	Yes    bool   `short:"y" help:"Approve every command without asking"`
}

// ParseCmd parses action blocks from a file or stdin.
type ParseCmd struct {
	File   string `arg:"" optional:"" help:"File to parse (default: stdin)"`
	Format string `short:"f" enum:"text,yaml" default:"text" help:"Output format (text, yaml)"`
}

// ReplayCmd renders a saved transcript.
type ReplayCmd struct {
	Session string `arg:"" help:"Transcript file, or session id under storage.path/sessions"`
	Verbose int    `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	Stats   bool   `help:"Print aggregate statistics after the timeline"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
