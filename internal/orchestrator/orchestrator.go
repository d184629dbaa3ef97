// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator drives user-to-assistant exchanges: it assembles the
// contextual message sequence, invokes the engine handle, and reconciles
// the result (or failure) back into the conversation store.
package orchestrator

import (
	"context"
	"strings"
	"sync"

	"github.com/parley-chat/parley-tui/internal/engine"
	"github.com/parley-chat/parley-tui/internal/model"
	"github.com/parley-chat/parley-tui/internal/store"
)

// TokenSink receives streamed reply fragments for incremental display.
// It is called from the goroutine consuming the engine stream.
type TokenSink func(conversationID, token string)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives one turn at a time per call. Overlapping calls are
// each independent requests to the engine handle; the orchestrator does not
// serialize them. Serialization, if desired, is a caller-level policy.
//
// The generating flag is tracked as a counter so overlapping turns do not
// unstick each other, but Abort forces it to zero: abort is authoritative
// for UI state even when the engine's cancellation is unreliable.
type Orchestrator struct {
	store  *store.Store
	handle *engine.Handle

	// defaults applied to every turn; Stream selects incremental delivery.
	defaults engine.Options

	// onToken, when set, receives stream fragments during streaming turns.
	onToken TokenSink

	// onUpdate, when set, is called after every observable state change
	// (generating flag, lastError).
	onUpdate func()

	mu         sync.Mutex
	generating int
	lastErr    string
}

// New creates an orchestrator over the given store and engine handle. The
// orchestrator never constructs or destroys the handle, only calls through
// it.
func New(st *store.Store, handle *engine.Handle, defaults engine.Options) *Orchestrator {
	return &Orchestrator{
		store:    st,
		handle:   handle,
		defaults: defaults,
	}
}

// SetTokenSink installs the streamed-fragment receiver.
func (o *Orchestrator) SetTokenSink(sink TokenSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onToken = sink
}

// SetNotify installs the state-change callback.
func (o *Orchestrator) SetNotify(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onUpdate = fn
}

// =============================================================================
// SENDING
// =============================================================================

// Send runs one user-to-assistant exchange.
//
// Whitespace-only input is a no-op: nothing is appended and the engine is
// never called. With no ready engine the turn is rejected before any
// message is appended and the failure is recorded in the last error.
//
// The assistant reply is appended to the conversation the user message went
// to, not to whichever conversation is active when the reply lands; a reply
// whose conversation was deleted mid-flight is dropped.
//
// On failure the user message stays in place (a failed turn is never
// silently discarded) and the failure message is recorded. The generating
// flag is cleared unconditionally.
func (o *Orchestrator) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if !o.handle.Ready() {
		o.setError(engine.ErrNotInitialized.Error())
		return engine.ErrNotInitialized
	}

	convID := o.store.AppendMessage(model.NewUserMessage(trimmed))
	if convID == "" {
		// No active conversation: the append had no effect and there is
		// nothing to attach a reply to.
		return nil
	}

	o.beginTurn()
	defer o.endTurn()

	// Assemble the context at call time: every prior message in the
	// originating conversation, in order, including the message appended
	// above. A rapid second Send sees this user message but not yet the
	// reply.
	conv := o.store.Get(convID)
	if conv == nil {
		return nil
	}
	messages := conv.ToEngineMessages()

	opts := o.defaults
	reply, err := o.generate(ctx, convID, messages, &opts)
	if err != nil {
		o.setError(err.Error())
		return err
	}

	o.store.AppendMessageTo(convID, model.NewAssistantMessage(reply))
	return nil
}

// generate runs the engine call, streaming or not.
func (o *Orchestrator) generate(ctx context.Context, convID string, messages []engine.Message, opts *engine.Options) (string, error) {
	if !opts.Stream {
		return o.handle.Chat(ctx, messages, opts)
	}

	ch, err := o.handle.ChatStream(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	sink := o.onToken
	o.mu.Unlock()

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			if sink != nil {
				sink(convID, chunk.Content)
			}
		}
	}

	if sb.Len() == 0 {
		return "", engine.ErrEmptyResponse
	}
	return sb.String(), nil
}

// =============================================================================
// CONTROL
// =============================================================================

// Abort delegates best-effort cancellation to the engine handle and
// unconditionally clears the generating flag, so the UI can always be
// unstuck.
func (o *Orchestrator) Abort() {
	o.handle.Abort()

	o.mu.Lock()
	o.generating = 0
	o.mu.Unlock()
	o.notify()
}

// Clear empties the active conversation and resets the engine's internal
// context. Both are always attempted; persistence of the cleared state is
// the synchronizer's concern.
func (o *Orchestrator) Clear() {
	o.store.ClearMessages()
	o.handle.ResetContext()
	o.setError("")
}

// =============================================================================
// OBSERVABLE STATE
// =============================================================================

// Generating reports whether any turn is in flight.
func (o *Orchestrator) Generating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generating > 0
}

// LastError returns the recorded failure message, or "".
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// ClearError explicitly clears the recorded failure.
func (o *Orchestrator) ClearError() {
	o.setError("")
}

// =============================================================================
// HELPERS
// =============================================================================

func (o *Orchestrator) beginTurn() {
	o.mu.Lock()
	o.generating++
	o.lastErr = ""
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) endTurn() {
	o.mu.Lock()
	// Abort may have zeroed the counter already.
	if o.generating > 0 {
		o.generating--
	}
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) setError(msg string) {
	o.mu.Lock()
	o.lastErr = msg
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	fn := o.onUpdate
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}
