// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/parley-chat/parley-tui/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "parley.db")
	cfg.Storage.FlushDebounceMs = 10

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return a
}

func TestStartCreatesFirstConversation(t *testing.T) {
	a := newTestApp(t)

	if got := len(a.Conversations()); got != 1 {
		t.Fatalf("fresh app has %d conversations, want 1", got)
	}
	active := a.ActiveConversation()
	if active == nil {
		t.Fatal("fresh app has no active conversation")
	}
	if active.MessageCount() != 0 {
		t.Errorf("first conversation not empty: %d messages", active.MessageCount())
	}
}

func TestConversationLifecycleThroughFacade(t *testing.T) {
	a := newTestApp(t)
	first := a.ActiveConversation().ID

	second := a.CreateConversation()
	if a.ActiveConversation().ID != second {
		t.Error("creation did not select the new conversation")
	}

	if err := a.SelectConversation(first); err != nil {
		t.Fatal(err)
	}
	if err := a.RenameConversation(first, "Kept Notes"); err != nil {
		t.Fatal(err)
	}
	if err := a.RenameConversation(first, "   "); err == nil {
		t.Error("whitespace-only rename accepted")
	}

	if err := a.DeleteConversation(first); err != nil {
		t.Fatal(err)
	}
	if a.ActiveConversation().ID != second {
		t.Error("deleting active did not promote the remaining conversation")
	}
}

func TestStateReflectsLifecycleAndErrors(t *testing.T) {
	a := newTestApp(t)

	st := a.State()
	if st.Generating {
		t.Error("fresh app reports generating")
	}
	if st.ActiveConversationID == "" {
		t.Error("state missing active conversation")
	}
	if st.LastError != "" {
		t.Errorf("fresh app has error %q", st.LastError)
	}
}

func TestSwitchModelRejectsEmptyID(t *testing.T) {
	a := newTestApp(t)
	if err := a.SwitchModel(t.Context(), "  "); err == nil {
		t.Error("empty model id accepted")
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(dir, "parley.db")
	cfg.Storage.FlushDebounceMs = 10

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	id := a.ActiveConversation().ID
	if err := a.RenameConversation(id, "survives restart"); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}

	convs := b.Conversations()
	if len(convs) != 1 {
		t.Fatalf("restarted app has %d conversations", len(convs))
	}
	if convs[0].Title != "survives restart" {
		t.Errorf("title after restart = %q", convs[0].Title)
	}
}

func TestStartPrunesBeforeLoading(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(dir, "parley.db")
	cfg.Storage.FlushDebounceMs = 10

	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Start(); err != nil {
		t.Fatal(err)
	}
	// Renames write through immediately, so all three reach the database.
	if err := a.RenameConversation(a.ActiveConversation().ID, "oldest"); err != nil {
		t.Fatal(err)
	}
	if err := a.RenameConversation(a.CreateConversation(), "middle"); err != nil {
		t.Fatal(err)
	}
	if err := a.RenameConversation(a.CreateConversation(), "newest"); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	limited := cfg.Clone()
	limited.Storage.MaxConversations = 2
	b, err := New(limited)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}

	// The store must agree with the pruned database right after Start.
	convs := b.Conversations()
	if len(convs) != 2 {
		t.Fatalf("store holds %d conversations after pruned start, want 2", len(convs))
	}
	titles := map[string]bool{}
	for _, c := range convs {
		titles[c.Title] = true
	}
	if titles["oldest"] {
		t.Error("pruned conversation still loaded into the store")
	}
	if !titles["middle"] || !titles["newest"] {
		t.Errorf("newest conversations missing after prune: %v", titles)
	}
}

func TestSearchAndExport(t *testing.T) {
	a := newTestApp(t)
	id := a.ActiveConversation().ID
	if err := a.RenameConversation(id, "Picnic planning"); err != nil {
		t.Fatal(err)
	}

	records, err := a.SearchConversations("picnic")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("Search(picnic) = %d results", len(records))
	}

	md, err := a.ExportConversation(id, "markdown")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "# Picnic planning") {
		t.Error("markdown export missing title heading")
	}

	if _, err := a.ExportConversation(id, "yaml"); err == nil {
		t.Error("unknown export format accepted")
	}

	if _, err := a.ExportConversation("missing", "json"); err == nil {
		t.Error("export of unknown conversation succeeded")
	}
}
