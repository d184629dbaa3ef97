// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persist keeps durable storage eventually consistent with the
// in-memory conversation store without blocking interactive operations.
//
// Content mutations of the active conversation are written after a
// quiescent debounce delay; bursts collapse into a single write carrying
// the latest state. Renames and deletes bypass the debounce because they
// are explicit, infrequent actions whose effect must not be lost to a later
// unrelated flush. Mutations that land on a non-active conversation (a late
// assistant reply after the user switched away) are written immediately,
// since the single debounce timer is owned by the active conversation.
//
// Persistence is best effort: write failures are reported through the
// error callback and never roll back in-memory state.
package persist
