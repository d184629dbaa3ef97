// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"time"

	"github.com/parley-chat/parley-tui/internal/model"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// Record is a persisted conversation.
type Record struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	TitleDerived bool            `json:"title_derived"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Messages     []MessageRecord `json:"messages"`
}

// MessageRecord is a persisted message.
type MessageRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FromConversation converts an in-memory conversation to its stored form.
func FromConversation(conv *model.Conversation) Record {
	rec := Record{
		ID:           conv.ID,
		Title:        conv.Title,
		TitleDerived: conv.TitleDerived,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Messages:     make([]MessageRecord, len(conv.Messages)),
	}
	for i, msg := range conv.Messages {
		rec.Messages[i] = MessageRecord{
			ID:        msg.ID,
			Role:      msg.Role.String(),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}
	return rec
}

// ToConversation converts a stored record back to the in-memory form.
func (r Record) ToConversation() *model.Conversation {
	conv := &model.Conversation{
		ID:           r.ID,
		Title:        r.Title,
		TitleDerived: r.TitleDerived,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Messages:     make([]*model.Message, len(r.Messages)),
	}
	for i, msg := range r.Messages {
		conv.Messages[i] = &model.Message{
			ID:        msg.ID,
			Role:      model.Role(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}
	return conv
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store is the durable storage boundary consumed by the persistence
// synchronizer.
type Store interface {
	// GetAll returns every stored record, sorted by UpdatedAt descending.
	GetAll() ([]Record, error)

	// Get retrieves one record. Returns ErrConversationNotFound when the
	// id is absent.
	Get(id string) (*Record, error)

	// Put upserts a record keyed by its ID.
	Put(rec Record) error

	// Delete removes a record. Deleting an absent id returns
	// ErrConversationNotFound.
	Delete(id string) error

	// Clear removes all records.
	Clear() error

	// Close releases storage resources.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// StorageError represents a persistence-layer error.
type StorageError struct {
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing storage errors.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// ErrConversationNotFound is returned when a record does not exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &StorageError{Message: "conversation not found"}
