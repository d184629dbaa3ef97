// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// =============================================================================
// WIRE FORMATS (Ollama API)
// =============================================================================

type chatRequest struct {
	Model    string       `json:"model"`
	Messages []Message    `json:"messages"`
	Stream   bool         `json:"stream"`
	Options  *chatOptions `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type showRequest struct {
	Name string `json:"name"`
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullStatus struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

type unloadRequest struct {
	Model     string `json:"model"`
	KeepAlive int    `json:"keep_alive"`
}

// =============================================================================
// STREAM READER
// =============================================================================

// readStream parses newline-delimited JSON chat chunks from r and forwards
// them on ch until the stream reports done, the context is cancelled, or the
// body ends. Content fragments are emitted as they arrive; the final
// done-chunk is emitted without content.
func readStream(ctx context.Context, r io.Reader, ch chan<- Chunk) error {
	reader := bufio.NewReader(r)

	for {
		select {
		case <-ctx.Done():
			return generationError("generation aborted", ctx.Err())
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var resp chatResponse
			if jsonErr := json.Unmarshal(line, &resp); jsonErr == nil {
				if resp.Message.Content != "" {
					select {
					case ch <- Chunk{Content: resp.Message.Content}:
					case <-ctx.Done():
						return generationError("generation aborted", ctx.Err())
					}
				}
				if resp.Done {
					select {
					case ch <- Chunk{Done: true}:
					case <-ctx.Done():
					}
					return nil
				}
			}
			// Malformed lines are skipped; the server occasionally emits
			// keep-alives that are not chat chunks.
		}
		if err != nil {
			if err == io.EOF {
				// Stream ended without a done marker: treat as complete.
				select {
				case ch <- Chunk{Done: true}:
				case <-ctx.Done():
				}
				return nil
			}
			return generationError("stream read failed", err)
		}
	}
}

// drainAndClose discards the remainder of a response body so the connection
// can be reused, then closes it.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
