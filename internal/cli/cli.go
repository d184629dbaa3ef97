// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command handlers for parley.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdList
	CmdSearch
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model   string
	Plain   bool
	Quiet   bool
	NoColor bool

	// Command-specific
	Query      string
	Subcommand string
	Format     string
	Output     string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `parley - a terminal chat client for local language models

Parley talks to a local Ollama server and keeps every conversation in a
SQLite database under ~/.parley.

Usage:
  parley                     Start TUI (default)
  parley chat                Plain-terminal chat (no TUI)
  parley list                List stored conversations
  parley search <query>      Search conversations (title and content)
  parley export <id>         Export a conversation
    --format markdown|json   Export format (default: markdown)
    --output FILE            Write to file (default: stdout)
  parley config [show|path]  Configuration
  parley version             Show version
  parley help                Show this help

Global flags:
  -m, --model NAME    Model to load (overrides config)
  --plain             Force plain chat even on a TTY
  -q, --quiet         Minimal output
  --no-color          Disable colored output

Interactive commands (during chat):
  /help               Show available commands
  /new                Start a new conversation
  /list               List conversations
  /switch <n>         Switch to conversation n
  /rename <title>     Rename the current conversation
  /clear              Clear the current conversation
  /model [name]       Show or switch model
  /quit               Exit chat
  Ctrl+C              Cancel current generation
`

// Usage prints the top-level help text.
func Usage() {
	fmt.Print(usageText)
}

// Parse reads os.Args and returns the command with its arguments.
func Parse() (Command, Args) {
	raw := os.Args[1:]
	args := Args{}

	// Peel off global flags first.
	var rest []string
	i := 0
	for i < len(raw) {
		switch raw[i] {
		case "-m", "--model":
			if i+1 < len(raw) {
				args.Model = raw[i+1]
				i++
			}
		case "--plain":
			args.Plain = true
		case "-q", "--quiet":
			args.Quiet = true
		case "--no-color":
			args.NoColor = true
		default:
			rest = append(rest, raw[i])
		}
		i++
	}

	if len(rest) == 0 {
		return CmdTUI, args
	}

	cmd := rest[0]
	parser := NewArgParser(rest[1:])
	args.Subcommand = parser.Subcommand()
	args.Format = parser.Flag("format")
	args.Output = parser.Flag("output")
	args.Raw = parser.Positional()
	args.Query = strings.Join(parser.Positional(), " ")

	switch cmd {
	case "chat", "c":
		return CmdChat, args
	case "list", "ls":
		return CmdList, args
	case "search":
		return CmdSearch, args
	case "export":
		return CmdExport, args
	case "config":
		return CmdConfig, args
	case "version", "-v", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, args
	}
}

// HandleVersion prints version information.
func HandleVersion(_ Args) {
	fmt.Printf("parley %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
