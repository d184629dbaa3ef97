// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package persist

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/parley-chat/parley-tui/internal/model"
	"github.com/parley-chat/parley-tui/internal/storage"
	"github.com/parley-chat/parley-tui/internal/store"
)

// DefaultDebounce is the quiescent delay before a content mutation is
// written through.
const DefaultDebounce = 400 * time.Millisecond

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds synchronizer settings.
type Config struct {
	// Debounce is the quiescent delay for content writes
	// (default: DefaultDebounce).
	Debounce time.Duration

	// OnError receives persistence failures. Default: print to stderr.
	OnError func(error)
}

// =============================================================================
// SYNCHRONIZER
// =============================================================================

// Synchronizer observes conversation-store mutations and writes them to
// durable storage under the debounce policy.
type Synchronizer struct {
	store    *store.Store
	backend  storage.Store
	debounce time.Duration
	onError  func(error)

	mu        sync.Mutex
	timer     *time.Timer
	pendingID string // conversation the pending timer will write
	closed    bool
}

// New creates a synchronizer. Call Start to begin observing the store.
func New(st *store.Store, backend storage.Store, cfg Config) *Synchronizer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) {
			fmt.Fprintf(os.Stderr, "parley: persistence error: %v\n", err)
		}
	}
	return &Synchronizer{
		store:    st,
		backend:  backend,
		debounce: cfg.Debounce,
		onError:  cfg.OnError,
	}
}

// Start subscribes to store mutation events.
func (s *Synchronizer) Start() {
	s.store.Subscribe(s.handleEvent)
}

// LoadAll reads every stored conversation, newest first. The second return
// value signals that storage was empty and the caller should create a first
// conversation; the synchronizer never creates conversations itself.
func (s *Synchronizer) LoadAll() ([]*model.Conversation, bool, error) {
	records, err := s.backend.GetAll()
	if err != nil {
		return nil, true, err
	}

	conversations := make([]*model.Conversation, len(records))
	for i, rec := range records {
		conversations[i] = rec.ToConversation()
	}
	return conversations, len(conversations) == 0, nil
}

// Flush writes any pending debounced state immediately. Used on shutdown so
// the quiescent delay cannot swallow the last edit.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	id := s.pendingID
	s.pendingID = ""
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if id != "" {
		s.writeNow(id)
	}
}

// Close cancels any pending write and stops observing. In-flight immediate
// writes complete on their own goroutine-free path (they run synchronously
// in the mutation's listener call).
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pendingID = ""
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

func (s *Synchronizer) handleEvent(ev store.Event) {
	switch ev.Type {
	case store.EventCreate, store.EventAppend, store.EventUpdate, store.EventClear:
		// Content mutation. Active conversation goes through the debounce;
		// a non-active target (late reply) is written immediately because
		// the debounce timer belongs to the active conversation.
		if ev.ConversationID == s.store.ActiveID() {
			s.schedule(ev.ConversationID)
		} else {
			s.writeNow(ev.ConversationID)
		}

	case store.EventRename:
		// Explicit user action: bypass the debounce.
		s.cancelPendingFor(ev.ConversationID)
		s.writeNow(ev.ConversationID)

	case store.EventDelete:
		s.cancelPendingFor(ev.ConversationID)
		if err := s.backend.Delete(ev.ConversationID); err != nil &&
			!errors.Is(err, storage.ErrConversationNotFound) {
			s.onError(err)
		}

	case store.EventSelect, store.EventLoad:
		// Switching the active conversation (or replacing the collection)
		// abandons the pending timer so stale state is never written under
		// a new selection.
		s.cancelAll()
	}
}

// =============================================================================
// DEBOUNCE MACHINERY
// =============================================================================

// schedule arms (or re-arms) the debounce timer for the given conversation.
// Rapid successive calls collapse into a single write of whatever state the
// store holds when the timer fires.
func (s *Synchronizer) schedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.pendingID = id
	s.timer = time.AfterFunc(s.debounce, func() {
		s.fire(id)
	})
}

// fire runs when the debounce elapses. The pending id is re-checked so a
// timer that lost a Stop race writes nothing stale.
func (s *Synchronizer) fire(id string) {
	s.mu.Lock()
	if s.closed || s.pendingID != id {
		s.mu.Unlock()
		return
	}
	s.pendingID = ""
	s.timer = nil
	s.mu.Unlock()

	s.writeNow(id)
}

// cancelPendingFor drops the pending write if it targets the given
// conversation.
func (s *Synchronizer) cancelPendingFor(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingID == id {
		s.pendingID = ""
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
	}
}

// cancelAll drops any pending write.
func (s *Synchronizer) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingID = ""
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// writeNow persists the current state of one conversation. The state is
// read from the store at write time, so a collapsed burst carries the
// latest content. A conversation deleted before the write fires is skipped.
func (s *Synchronizer) writeNow(id string) {
	conv := s.store.Get(id)
	if conv == nil {
		return
	}
	if err := s.backend.Put(storage.FromConversation(conv)); err != nil {
		s.onError(err)
	}
}
