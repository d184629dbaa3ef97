// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"sync"
)

// =============================================================================
// ENGINE HANDLE
// =============================================================================

// Handle is the single point of control for the inference engine.
//
// It owns at most one live Engine at a time. Initialize fully shuts down the
// resident engine before constructing its replacement, so a model switch
// never leaves two engines resident. While a switch is in progress the
// handle is not ready and all generation calls fail with ErrNotInitialized;
// nothing is queued.
//
// The Handle is safe for concurrent use. It is constructed once and passed
// by reference to its owner (the lifecycle controller); nothing else
// constructs or destroys engines.
type Handle struct {
	factory Factory

	// loadMu serializes Initialize so a switch is exactly one unload
	// followed by one construction.
	loadMu sync.Mutex

	// mu guards the fields below.
	mu      sync.Mutex
	engine  Engine // nil while not ready
	modelID string
}

// NewHandle creates a Handle that builds engines with the given factory.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// Initialize loads modelID into a fresh engine, replacing any resident one.
//
// The resident engine (if any) is shut down before the new one is
// constructed. On failure the handle stays not-ready and the underlying
// error is propagated unchanged.
func (h *Handle) Initialize(ctx context.Context, modelID string, onProgress ProgressFunc) error {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	// Take the handle not-ready before unloading, so requests racing with
	// the switch fail fast instead of reaching a dying engine.
	h.mu.Lock()
	old := h.engine
	h.engine = nil
	h.modelID = ""
	h.mu.Unlock()

	if old != nil {
		old.Shutdown()
	}

	eng := h.factory()
	if err := eng.Initialize(ctx, modelID, onProgress); err != nil {
		eng.Shutdown()
		return err
	}

	h.mu.Lock()
	h.engine = eng
	h.modelID = modelID
	h.mu.Unlock()
	return nil
}

// Chat runs a full generation and returns the complete assistant text.
// Fails with ErrNotInitialized when no engine is ready, and with
// ErrEmptyResponse when the engine returned no content at all.
func (h *Handle) Chat(ctx context.Context, messages []Message, opts *Options) (string, error) {
	eng := h.current()
	if eng == nil {
		return "", ErrNotInitialized
	}

	text, err := eng.Chat(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ChatStream starts a streaming generation. The precondition failure
// (no ready engine) is returned directly; engine-level failures during the
// stream arrive through the channel as the terminating chunk's Err.
func (h *Handle) ChatStream(ctx context.Context, messages []Message, opts *Options) (<-chan Chunk, error) {
	eng := h.current()
	if eng == nil {
		return nil, ErrNotInitialized
	}
	return eng.ChatStream(ctx, messages, opts), nil
}

// Abort cancels an in-flight generation, best effort. No-op when nothing is
// in flight or no engine is ready.
func (h *Handle) Abort() {
	if eng := h.current(); eng != nil {
		eng.Abort()
	}
}

// ResetContext clears engine-internal conversational memory. No-op when the
// engine was never initialized.
func (h *Handle) ResetContext() {
	if eng := h.current(); eng != nil {
		eng.ResetContext()
	}
}

// Shutdown unloads the resident engine, if any, leaving the handle
// not-ready.
func (h *Handle) Shutdown() {
	h.mu.Lock()
	old := h.engine
	h.engine = nil
	h.modelID = ""
	h.mu.Unlock()

	if old != nil {
		old.Shutdown()
	}
}

// Ready reports whether a generation call would be accepted right now.
func (h *Handle) Ready() bool {
	return h.current() != nil
}

// ModelID returns the model served by the resident engine, or "" when the
// handle is not ready.
func (h *Handle) ModelID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.modelID
}

func (h *Handle) current() Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}
