// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley-tui/internal/engine"
)

// Title derivation limits. A derived title is at most TitleMaxLen characters
// of the first user message; when truncated, TitleEllipsis is appended so
// the rendered title never silently exceeds the limit.
const (
	TitleMaxLen   = 50
	TitleEllipsis = "..."
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a titled, ordered message log with metadata.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages, insertion-order significant.
	Messages []*Message `json:"messages"`

	// TitleDerived is set once the title has been derived from the first
	// user message or explicitly renamed; later user messages never change
	// a settled title.
	TitleDerived bool `json:"title_derived"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message and refreshes UpdatedAt. The first user-role
// message derives the title unless one is already settled.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.Touch()

	if msg.Role == RoleUser && !c.TitleDerived {
		c.Title = DeriveTitle(msg.Content)
		c.TitleDerived = true
	}
}

// UpdateMessage replaces the content of the message with the given ID.
// The message timestamp is left untouched. Returns false when no message
// matches; the conversation is unchanged in that case.
func (c *Conversation) UpdateMessage(id, newContent string) bool {
	for _, msg := range c.Messages {
		if msg.ID == id {
			msg.Content = newContent
			c.Touch()
			return true
		}
	}
	return false
}

// RemoveMessage removes a message by ID. Returns false when not found.
func (c *Conversation) RemoveMessage(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.Touch()
			return true
		}
	}
	return false
}

// ClearMessages empties the message log without deleting the conversation.
func (c *Conversation) ClearMessages() {
	c.Messages = make([]*Message, 0)
	c.Touch()
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Touch refreshes UpdatedAt. The clock reading is clamped so UpdatedAt is
// monotonically non-decreasing even if the wall clock steps backwards.
func (c *Conversation) Touch() {
	now := time.Now()
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// DeriveTitle derives a display title from message content: up to
// TitleMaxLen characters, with TitleEllipsis appended when truncated.
// Truncation cuts at exactly TitleMaxLen characters regardless of word
// boundaries.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxLen {
		return content
	}
	return string(runes[:TitleMaxLen]) + TitleEllipsis
}

// Rename sets the title verbatim and settles it against later derivation.
// Validation of empty or whitespace-only titles is the caller's concern.
func (c *Conversation) Rename(title string) {
	c.Title = title
	c.TitleDerived = true
	c.Touch()
}

// DisplayTitle returns the title or a placeholder for untitled
// conversations.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Chat"
}

// =============================================================================
// ENGINE CONVERSION
// =============================================================================

// ToEngineMessages converts the message log to the engine wire format,
// preserving order. Roles outside the closed set never occur, but unknown
// roles would be skipped rather than sent.
func (c *Conversation) ToEngineMessages() []engine.Message {
	messages := make([]engine.Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
			messages = append(messages, engine.Message{
				Role:    msg.Role.String(),
				Content: msg.Content,
			})
		}
	}
	return messages
}

// =============================================================================
// COPYING
// =============================================================================

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		TitleDerived: c.TitleDerived,
		Messages:     make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return clone
}
