// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the chat core together and exposes the operations the
// user interfaces call.
//
// An App owns the conversation store, the model lifecycle controller, the
// turn orchestrator, and the persistence synchronizer. Frontends (the TUI
// and the plain REPL) drive everything through App and render from State
// snapshots; they never touch the underlying components directly.
package app
