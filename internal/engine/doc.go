// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine defines the inference-engine contract consumed by the
// orchestration core, and the Handle that enforces single-engine ownership.
//
// The Engine interface is deliberately narrow: initialize, chat, streaming
// chat, abort, and context reset. Everything the rest of the application
// knows about inference goes through this contract, which keeps the core
// testable with in-memory fakes.
//
// The Handle wraps at most one live Engine. Switching models fully shuts
// down the resident engine before the replacement is constructed, so two
// engines are never resident at once. All calls through a Handle with no
// ready engine fail with ErrNotInitialized.
//
// An Ollama-backed Engine implementation is provided for local inference.
package engine
