// parley - a terminal chat client for local language models.
//
// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-chat/parley-tui/internal/app"
	"github.com/parley-chat/parley-tui/internal/cli"
	"github.com/parley-chat/parley-tui/internal/config"
	"github.com/parley-chat/parley-tui/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdTUI:
		// The TUI needs a real terminal; fall back to the plain REPL
		// when streams are piped or --plain was given.
		if args.Plain || !cli.IsTTY() || !cli.IsStdoutTTY() {
			err = cli.HandleChat(args)
		} else {
			err = runTUI(args)
		}
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdList:
		err = cli.HandleList(args)
	case cli.CmdSearch:
		err = cli.HandleSearch(args)
	case cli.CmdExport:
		err = cli.HandleExport(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.Usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(args cli.Args) error {
	cfg := config.Global()
	if args.Model != "" {
		cfg = cfg.Clone()
		cfg.DefaultModel = args.Model
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		return err
	}

	p := tea.NewProgram(
		chat.New(a, cfg),
		tea.WithAltScreen(),
	)

	// Live-reload config edits into the running session.
	watcher, werr := config.NewWatcher(time.Second, func(updated *config.Config) {
		p.Send(chat.ConfigReloadedMsg{Cfg: updated})
	})
	if werr == nil && watcher.Watch() == nil {
		defer watcher.Close()
	}

	_, err = p.Run()
	return err
}
