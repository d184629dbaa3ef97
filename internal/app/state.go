// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"github.com/parley-chat/parley-tui/internal/lifecycle"
	"github.com/parley-chat/parley-tui/internal/model"
)

// =============================================================================
// STATE SNAPSHOT
// =============================================================================

// State is a self-consistent snapshot of everything a frontend renders.
// Conversations are deep copies; mutating them does not affect the store.
type State struct {
	Conversations        []*model.Conversation
	ActiveConversationID string

	ModelID      string
	ModelStatus  lifecycle.Status
	LoadProgress int
	LoadStage    string

	Generating bool
	LastError  string
}

// State assembles a snapshot of the current application state.
func (a *App) State() State {
	snap := a.lifecycle.Snapshot()

	lastErr := a.orch.LastError()
	if lastErr == "" {
		lastErr = snap.Err
	}

	return State{
		Conversations:        a.store.All(),
		ActiveConversationID: a.store.ActiveID(),
		ModelID:              snap.ModelID,
		ModelStatus:          snap.Status,
		LoadProgress:         snap.Progress,
		LoadStage:            snap.Stage,
		Generating:           a.orch.Generating(),
		LastError:            lastErr,
	}
}
