// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// A Conversation is a titled, ordered log of messages with a lifecycle
// independent from other conversations. Titles are auto-derived from the
// first user message unless explicitly renamed; derivation state is tracked
// with an explicit flag rather than re-scanning the log on every append.
package model
