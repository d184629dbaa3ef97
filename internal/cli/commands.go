// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// commands.go - Non-interactive command handlers: list, search, export,
// config. These open the conversation database directly; no engine is
// involved.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parley-chat/parley-tui/internal/config"
	"github.com/parley-chat/parley-tui/internal/storage"
	"github.com/parley-chat/parley-tui/internal/util"
)

// openStore opens the configured conversation database.
func openStore() (*storage.SQLiteStore, error) {
	cfg := config.Global()
	path := cfg.Storage.Path
	if path == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	} else {
		p, err := util.ExpandHome(path)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return storage.OpenSQLite(path)
}

// HandleList prints stored conversations, most recently updated first.
func HandleList(args Args) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.GetAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No conversations yet.")
		return nil
	}

	printRecords(os.Stdout, records, args.Quiet)
	return nil
}

// HandleSearch prints conversations matching the query.
func HandleSearch(args Args) error {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: parley search <query>")
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Search(query)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No conversations match %q.\n", query)
		return nil
	}

	printRecords(os.Stdout, records, args.Quiet)
	return nil
}

// HandleExport writes one conversation as markdown or JSON.
func HandleExport(args Args) error {
	id := args.Subcommand
	if id == "" {
		fmt.Fprintln(os.Stderr, "usage: parley export <id> [--format markdown|json] [--output FILE]")
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Get(id)
	if err != nil {
		// list prints shortened ids; accept a unique prefix too.
		rec, err = findByPrefix(st, id)
		if err != nil {
			return err
		}
	}

	var data []byte
	switch args.Format {
	case "json":
		data, err = rec.ExportJSON()
		if err != nil {
			return err
		}
	case "", "markdown", "md":
		data = []byte(rec.ExportMarkdown())
	default:
		return fmt.Errorf("unknown export format %q", args.Format)
	}

	if args.Output == "" {
		fmt.Print(string(data))
		return nil
	}
	return util.AtomicWriteFile(args.Output, data, 0644)
}

// HandleConfig shows configuration or its file path.
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		fmt.Println(path)
	case "", "show":
		fmt.Println(config.Global().String())
	default:
		fmt.Fprintf(os.Stderr, "usage: parley config [show|path]\n")
	}
	return nil
}

// findByPrefix resolves a shortened conversation id. Ambiguous or unknown
// prefixes are errors.
func findByPrefix(st *storage.SQLiteStore, prefix string) (*storage.Record, error) {
	records, err := st.GetAll()
	if err != nil {
		return nil, err
	}
	var match *storage.Record
	for i := range records {
		if strings.HasPrefix(records[i].ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("conversation id %q is ambiguous", prefix)
			}
			match = &records[i]
		}
	}
	if match == nil {
		return nil, storage.ErrConversationNotFound
	}
	return match, nil
}

func printRecords(w io.Writer, records []storage.Record, quiet bool) {
	for _, rec := range records {
		if quiet {
			fmt.Fprintln(w, rec.ID)
			continue
		}
		title := util.TruncateRunes(util.CollapseSpace(rec.Title), 60, "...")
		if title == "" {
			title = "(untitled)"
		}
		// A foreign database may hold IDs shorter than a UUID.
		fmt.Fprintf(w, "%s  %s  (%d messages, updated %s)\n",
			util.TruncateRunes(rec.ID, 8, ""), title, len(rec.Messages),
			rec.UpdatedAt.Format("2006-01-02 15:04"))
	}
}
