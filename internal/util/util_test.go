// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		ellipsis string
		want     string
	}{
		{"shorter than max", "hello", 10, "...", "hello"},
		{"exactly max", "hello", 5, "...", "hello"},
		{"longer than max", "hello world", 5, "...", "hello..."},
		{"multibyte runes", "héllо wörld", 5, "...", "héllо..."},
		{"cjk", "你好世界你好", 4, "...", "你好世界..."},
		{"zero max", "hello", 0, "...", ""},
		{"empty input", "", 5, "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.max, tt.ellipsis)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("one\ntwo\nthree"); got != "one" {
		t.Errorf("FirstLine = %q, want %q", got, "one")
	}
	if got := FirstLine("no breaks"); got != "no breaks" {
		t.Errorf("FirstLine = %q, want %q", got, "no breaks")
	}
	if got := FirstLine("crlf\r\nnext"); got != "crlf" {
		t.Errorf("FirstLine = %q, want %q", got, "crlf")
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  a\t b \n c  "); got != "a b c" {
		t.Errorf("CollapseSpace = %q, want %q", got, "a b c")
	}
	if got := CollapseSpace("   "); got != "" {
		t.Errorf("CollapseSpace = %q, want %q", got, "")
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "out.txt")

	if err := AtomicWriteFile(path, []byte("first"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "first" {
		t.Errorf("content = %q, want %q", data, "first")
	}

	// Overwrite replaces the file completely.
	if err := AtomicWriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content after overwrite = %q, want %q", data, "second")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandHome("~/x/y")
	if err != nil {
		t.Fatalf("ExpandHome failed: %v", err)
	}
	if want := filepath.Join(home, "x", "y"); got != want {
		t.Errorf("ExpandHome(~/x/y) = %q, want %q", got, want)
	}

	got, err = ExpandHome("/abs/path")
	if err != nil {
		t.Fatalf("ExpandHome failed: %v", err)
	}
	if got != "/abs/path" {
		t.Errorf("ExpandHome(/abs/path) = %q, want unchanged", got)
	}
}
