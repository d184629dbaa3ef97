// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "hello world", "hello world"},
		{"exact limit", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"over limit", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"empty", "", ""},
		{"unicode over limit", strings.Repeat("世", 60), strings.Repeat("世", 50) + "..."},
		{"unicode at limit", strings.Repeat("é", 50), strings.Repeat("é", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.content); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestTitleDerivedFromFirstUserMessage(t *testing.T) {
	c := NewConversation()
	c.AddMessage(NewSystemMessage("you are helpful"))
	if c.TitleDerived {
		t.Fatal("system message should not derive a title")
	}

	c.AddMessage(NewUserMessage("what is the capital of France?"))
	if !c.TitleDerived {
		t.Fatal("first user message should derive the title")
	}
	if c.Title != "what is the capital of France?" {
		t.Errorf("title = %q", c.Title)
	}

	c.AddMessage(NewUserMessage("and of Germany?"))
	if c.Title != "what is the capital of France?" {
		t.Errorf("settled title changed to %q", c.Title)
	}
}

func TestRenameSettlesTitle(t *testing.T) {
	c := NewConversation()
	c.Rename("My Chat")
	if c.Title != "My Chat" || !c.TitleDerived {
		t.Fatalf("rename did not settle title: %q derived=%v", c.Title, c.TitleDerived)
	}

	c.AddMessage(NewUserMessage("this should not become the title"))
	if c.Title != "My Chat" {
		t.Errorf("renamed title overwritten: %q", c.Title)
	}
}

func TestDisplayTitlePlaceholder(t *testing.T) {
	c := NewConversation()
	if got := c.DisplayTitle(); got != "New Chat" {
		t.Errorf("DisplayTitle() = %q, want \"New Chat\"", got)
	}
	c.Rename("named")
	if got := c.DisplayTitle(); got != "named" {
		t.Errorf("DisplayTitle() = %q, want \"named\"", got)
	}
}

func TestTouchMonotonic(t *testing.T) {
	c := NewConversation()
	future := time.Now().Add(time.Hour)
	c.UpdatedAt = future
	c.Touch()
	if c.UpdatedAt.Before(future) {
		t.Errorf("UpdatedAt moved backwards: %v < %v", c.UpdatedAt, future)
	}
}

func TestUpdateMessagePreservesTimestamp(t *testing.T) {
	c := NewConversation()
	msg := NewUserMessage("original")
	c.AddMessage(msg)
	ts := msg.Timestamp

	if !c.UpdateMessage(msg.ID, "edited") {
		t.Fatal("UpdateMessage returned false for existing message")
	}
	if c.Messages[0].Content != "edited" {
		t.Errorf("content = %q", c.Messages[0].Content)
	}
	if !c.Messages[0].Timestamp.Equal(ts) {
		t.Error("edit changed the message timestamp")
	}

	if c.UpdateMessage("nope", "x") {
		t.Error("UpdateMessage returned true for unknown ID")
	}
}

func TestRemoveMessage(t *testing.T) {
	c := NewConversation()
	m1 := NewUserMessage("one")
	m2 := NewAssistantMessage("two")
	c.AddMessage(m1)
	c.AddMessage(m2)

	if !c.RemoveMessage(m1.ID) {
		t.Fatal("RemoveMessage returned false for existing message")
	}
	if c.MessageCount() != 1 || c.Messages[0].ID != m2.ID {
		t.Errorf("unexpected messages after remove: %d", c.MessageCount())
	}
	if c.RemoveMessage(m1.ID) {
		t.Error("RemoveMessage returned true for already-removed message")
	}
}

func TestClearMessages(t *testing.T) {
	c := NewConversation()
	c.AddMessage(NewUserMessage("hello"))
	c.ClearMessages()
	if !c.IsEmpty() {
		t.Error("ClearMessages left messages behind")
	}
	if c.Title != "hello" {
		t.Error("ClearMessages should not reset the title")
	}
}

func TestToEngineMessagesOrder(t *testing.T) {
	c := NewConversation()
	c.AddMessage(NewSystemMessage("sys"))
	c.AddMessage(NewUserMessage("usr"))
	c.AddMessage(NewAssistantMessage("asst"))

	msgs := c.ToEngineMessages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	wantRoles := []string{"system", "user", "assistant"}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("msgs[%d].Role = %q, want %q", i, msgs[i].Role, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := NewConversation()
	c.AddMessage(NewUserMessage("hello"))
	clone := c.Clone()

	clone.Messages[0].Content = "mutated"
	if c.Messages[0].Content != "hello" {
		t.Error("mutating clone message affected the original")
	}

	clone.AddMessage(NewUserMessage("extra"))
	if c.MessageCount() != 1 {
		t.Error("appending to clone affected the original")
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	if Role("tool").Valid() {
		t.Error("unknown role reported valid")
	}
}

func TestMessagePreview(t *testing.T) {
	m := NewUserMessage("héllo wörld, this is a long message body")
	if got := m.Preview(100); got != m.Content {
		t.Errorf("short preview altered content: %q", got)
	}
	got := m.Preview(10)
	if len([]rune(got)) != 10 {
		t.Errorf("Preview(10) has %d runes: %q", len([]rune(got)), got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated preview missing ellipsis: %q", got)
	}
}
