// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the inference-engine contract consumed by the
// orchestration core.
package engine

import (
	"context"
	"time"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// Message is a single chat message in the engine wire format.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// NewUserMessage creates a user-role wire message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewSystemMessage creates a system-role wire message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// Options controls a single generation request.
// Zero values mean "engine default".
type Options struct {
	// Temperature is the sampling randomness (0 = engine default).
	Temperature float64

	// MaxTokens caps the number of generated tokens (0 = unlimited).
	MaxTokens int

	// Stream requests incremental delivery of the reply.
	Stream bool
}

// Progress reports model-loading progress.
type Progress struct {
	// Percent is the bounded load progress, always within [0,100].
	Percent int

	// Stage is a short human-readable description of the current phase,
	// e.g. "connecting", "downloading weights", "warming up".
	Stage string

	// Elapsed is the time since Initialize was called.
	Elapsed time.Duration
}

// ProgressFunc receives load-progress updates during Initialize.
type ProgressFunc func(Progress)

// Chunk is one fragment of a streaming reply.
//
// A stream is a lazy, finite, non-restartable sequence of chunks. The
// consumer concatenates Content fields to form the full reply. Failures are
// surfaced through the sequence itself: the final chunk carries Err and the
// channel is closed. A chunk with Done set and Err nil marks normal
// completion.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

// =============================================================================
// ENGINE CONTRACT
// =============================================================================

// Engine is the narrow contract for an inference runtime.
//
// Implementations own model loading, tokenization, and sampling. The
// orchestration core never looks behind this interface.
type Engine interface {
	// Initialize loads the given model, reporting progress through
	// onProgress (which may be nil). Blocks until the engine is ready to
	// serve Chat calls or loading failed. The underlying failure is
	// propagated unchanged.
	Initialize(ctx context.Context, modelID string, onProgress ProgressFunc) error

	// Chat runs a full generation and returns the complete assistant text.
	Chat(ctx context.Context, messages []Message, opts *Options) (string, error)

	// ChatStream runs a generation with incremental delivery. The returned
	// channel is closed when the stream ends; engine-level failures are
	// delivered as the final chunk's Err, never by panicking before the
	// sequence starts.
	ChatStream(ctx context.Context, messages []Message, opts *Options) <-chan Chunk

	// Abort is a best-effort cancellation of an in-flight generation.
	// It is a no-op, not an error, when nothing is in flight.
	Abort()

	// ResetContext clears any engine-internal conversational memory.
	// No-op for engines that keep no resident state between calls.
	ResetContext()

	// Shutdown releases all engine resources. After Shutdown the engine
	// must not be used again.
	Shutdown()
}

// Factory constructs a fresh, uninitialized Engine. The Handle calls it
// once per model load so a switch never reuses a stale instance.
type Factory func() Engine
