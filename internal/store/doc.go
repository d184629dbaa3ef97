// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the authoritative in-memory state of all
// conversations and the active-conversation selection.
//
// All mutations are synchronous and atomic with respect to the store lock.
// Every mutation fans out an Event to registered listeners after the lock
// is released; the persistence synchronizer observes these events to keep
// durable storage eventually consistent.
//
// Getters return deep copies so callers cannot mutate store state except
// through store operations.
package store
