// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches streamed reply fragments so the transcript
// re-renders at a capped frame rate instead of once per token. Tokens
// arrive from the orchestrator's sink goroutine while flushes happen on
// the Bubble Tea loop, so every operation locks.
type StreamingBuffer struct {
	mu         sync.Mutex
	buffer     strings.Builder
	tokenCount int
	lastFlush  time.Time

	batchSize int
	minFlush  time.Duration
}

// NewStreamingBuffer creates a buffer that flushes every 15 tokens or at
// most 30 times per second, whichever comes first.
func NewStreamingBuffer() *StreamingBuffer {
	const (
		defaultBatchSize = 15
		defaultMaxFPS    = 30
	)
	return &StreamingBuffer{
		batchSize: defaultBatchSize,
		minFlush:  time.Second / defaultMaxFPS,
		lastFlush: time.Now(),
	}
}

// Write adds a token. Called from the streaming goroutine.
func (sb *StreamingBuffer) Write(token string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.buffer.WriteString(token)
	sb.tokenCount++
}

// Flush returns the accumulated content when a flush is due, and whether
// anything was returned. Called from the Bubble Tea loop.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}
	if sb.tokenCount < sb.batchSize && time.Since(sb.lastFlush) < sb.minFlush {
		return "", false
	}

	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	return content, true
}

// Drain returns whatever is buffered regardless of thresholds. Used when a
// turn finishes so no trailing fragment is lost.
func (sb *StreamingBuffer) Drain() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	return content
}
