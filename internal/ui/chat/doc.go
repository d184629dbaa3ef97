// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the Bubble Tea chat screen: a conversation
// sidebar, a scrollable transcript, and an input line.
//
// The screen never mutates conversations directly. Every mutation goes
// through the app facade, and the screen re-renders from State snapshots
// delivered over its event channel.
package chat
