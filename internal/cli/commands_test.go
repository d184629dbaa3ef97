// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/parley-chat/parley-tui/internal/storage"
)

func TestPrintRecordsShortID(t *testing.T) {
	records := []storage.Record{
		{ID: "abc", Title: "hand-edited row", UpdatedAt: time.Now()},
		{ID: "0f417f0a-1234-5678-9abc-def012345678", Title: "normal row", UpdatedAt: time.Now()},
	}

	var buf strings.Builder
	printRecords(&buf, records, false)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "abc  ") {
		t.Errorf("short ID printed as %q, want it whole", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0f417f0a  ") {
		t.Errorf("long ID not shortened to 8: %q", lines[1])
	}
}

func TestPrintRecordsFormatting(t *testing.T) {
	long := strings.Repeat("t", 70)
	records := []storage.Record{
		{ID: "11111111-aaaa", Title: "", UpdatedAt: time.Now()},
		{ID: "22222222-bbbb", Title: "line\none", UpdatedAt: time.Now()},
		{ID: "33333333-cccc", Title: long, UpdatedAt: time.Now()},
	}

	var buf strings.Builder
	printRecords(&buf, records, false)
	out := buf.String()

	if !strings.Contains(out, "(untitled)") {
		t.Error("empty title not shown as (untitled)")
	}
	if !strings.Contains(out, "line one") {
		t.Error("multi-line title not collapsed to one line")
	}
	if strings.Contains(out, long) {
		t.Error("over-long title not truncated")
	}
}

func TestPrintRecordsQuiet(t *testing.T) {
	records := []storage.Record{
		{ID: "abc", UpdatedAt: time.Now()},
		{ID: "def", UpdatedAt: time.Now()},
	}

	var buf strings.Builder
	printRecords(&buf, records, true)
	if buf.String() != "abc\ndef\n" {
		t.Errorf("quiet output = %q, want bare IDs", buf.String())
	}
}
