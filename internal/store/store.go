// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"

	"github.com/parley-chat/parley-tui/internal/model"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventType identifies the kind of store mutation.
type EventType int

const (
	EventCreate EventType = iota // a conversation was created and selected
	EventDelete                  // a conversation was removed
	EventSelect                  // the active selection changed
	EventAppend                  // a message was appended
	EventUpdate                  // a message's content was edited
	EventRename                  // a title was set explicitly
	EventClear                   // a conversation's log was emptied
	EventLoad                    // the whole collection was replaced
)

// Event describes one store mutation.
type Event struct {
	Type EventType

	// ConversationID is the conversation the mutation applied to. For
	// EventSelect it is the newly active conversation (may be empty when
	// selection cleared); for EventLoad it is empty.
	ConversationID string
}

// Listener receives store events. Listeners are invoked synchronously,
// after the mutation, outside the store lock; they may call back into the
// store.
type Listener func(Event)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a conversation-store error.
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// ErrNotFound is returned when an operation names a conversation id that is
// not in the store. Selecting or renaming a nonexistent conversation is a
// caller contract violation, not a condition the store corrects silently.
var ErrNotFound = &StoreError{Message: "conversation not found"}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store is the in-memory collection of conversations.
//
// The slice order is the store order: when the active conversation is
// deleted, selection falls to the first remaining conversation in this
// order.
type Store struct {
	mu            sync.Mutex
	conversations []*model.Conversation
	activeID      string
	listeners     []Listener
}

// New creates an empty store.
func New() *Store {
	return &Store{
		conversations: make([]*model.Conversation, 0),
	}
}

// Subscribe registers a listener for mutation events.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// emit dispatches an event to all listeners. Must be called without the
// lock held.
func (s *Store) emit(ev Event) {
	s.mu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Create inserts a fresh conversation and selects it. New conversations are
// always inserted, never merged. Returns a copy of the new conversation.
func (s *Store) Create() *model.Conversation {
	conv := model.NewConversation()

	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	s.activeID = conv.ID
	s.mu.Unlock()

	s.emit(Event{Type: EventCreate, ConversationID: conv.ID})
	return conv.Clone()
}

// Delete removes the conversation with the given id. When it was active,
// selection falls to the first remaining conversation in store order, or to
// none when the store becomes empty; the store never auto-creates a
// replacement.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	var selected string
	reselected := false
	if s.activeID == id {
		reselected = true
		if len(s.conversations) > 0 {
			s.activeID = s.conversations[0].ID
		} else {
			s.activeID = ""
		}
		selected = s.activeID
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventDelete, ConversationID: id})
	if reselected {
		s.emit(Event{Type: EventSelect, ConversationID: selected})
	}
	return nil
}

// SetActive selects the conversation with the given id. An unknown id is a
// caller error and is reported, never silently corrected.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	changed := s.activeID != id
	s.activeID = id
	s.mu.Unlock()

	if changed {
		s.emit(Event{Type: EventSelect, ConversationID: id})
	}
	return nil
}

// LoadAll replaces the entire collection, selecting the first conversation
// when any exist. This is the sole bulk-replace operation, used once at
// startup.
func (s *Store) LoadAll(conversations []*model.Conversation) {
	s.mu.Lock()
	s.conversations = make([]*model.Conversation, len(conversations))
	copy(s.conversations, conversations)
	if len(s.conversations) > 0 {
		s.activeID = s.conversations[0].ID
	} else {
		s.activeID = ""
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventLoad})
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessage appends a message to the active conversation and returns
// that conversation's id. With no active conversation the operation has no
// effect and returns "": it neither fails nor creates a phantom
// conversation.
func (s *Store) AppendMessage(msg *model.Message) string {
	s.mu.Lock()
	conv := s.activeLocked()
	if conv == nil {
		s.mu.Unlock()
		return ""
	}
	conv.AddMessage(msg)
	id := conv.ID
	s.mu.Unlock()

	s.emit(Event{Type: EventAppend, ConversationID: id})
	return id
}

// AppendMessageTo appends a message to the conversation with the given id,
// whether or not it is active. This is how late assistant replies attach to
// their originating conversation after the user has switched elsewhere.
// Returns false when the conversation no longer exists (it was deleted
// mid-flight); the message is dropped in that case.
func (s *Store) AppendMessageTo(convID string, msg *model.Message) bool {
	s.mu.Lock()
	idx := s.indexLocked(convID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.conversations[idx].AddMessage(msg)
	s.mu.Unlock()

	s.emit(Event{Type: EventAppend, ConversationID: convID})
	return true
}

// UpdateMessage edits the content of a message in the active conversation.
// No-op when there is no active conversation or the id does not match.
func (s *Store) UpdateMessage(id, newContent string) bool {
	s.mu.Lock()
	conv := s.activeLocked()
	if conv == nil {
		s.mu.Unlock()
		return false
	}
	ok := conv.UpdateMessage(id, newContent)
	convID := conv.ID
	s.mu.Unlock()

	if ok {
		s.emit(Event{Type: EventUpdate, ConversationID: convID})
	}
	return ok
}

// ClearMessages empties the active conversation's log without deleting the
// conversation. No-op when nothing is active.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	conv := s.activeLocked()
	if conv == nil {
		s.mu.Unlock()
		return
	}
	conv.ClearMessages()
	id := conv.ID
	s.mu.Unlock()

	s.emit(Event{Type: EventClear, ConversationID: id})
}

// Rename sets a conversation's title verbatim. The store does not validate
// title non-emptiness; that is the caller's contract.
func (s *Store) Rename(id, newTitle string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.conversations[idx].Rename(newTitle)
	s.mu.Unlock()

	s.emit(Event{Type: EventRename, ConversationID: id})
	return nil
}

// =============================================================================
// READ ACCESS
// =============================================================================

// ActiveID returns the active conversation id, or "" when none is selected.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a copy of the active conversation, or nil when none is
// selected.
func (s *Store) Active() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv := s.activeLocked(); conv != nil {
		return conv.Clone()
	}
	return nil
}

// Get returns a copy of the conversation with the given id, or nil.
func (s *Store) Get(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexLocked(id); idx >= 0 {
		return s.conversations[idx].Clone()
	}
	return nil
}

// All returns copies of all conversations in store order.
func (s *Store) All() []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Count returns the number of conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// IsEmpty reports whether the store holds no conversations.
func (s *Store) IsEmpty() bool {
	return s.Count() == 0
}

// =============================================================================
// HELPERS
// =============================================================================

// indexLocked returns the slice index for id, or -1. Caller holds the lock.
func (s *Store) indexLocked(id string) int {
	for i, conv := range s.conversations {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

// activeLocked returns the live active conversation, or nil. Caller holds
// the lock.
func (s *Store) activeLocked() *model.Conversation {
	if s.activeID == "" {
		return nil
	}
	if idx := s.indexLocked(s.activeID); idx >= 0 {
		return s.conversations[idx]
	}
	return nil
}
