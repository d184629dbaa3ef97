// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-chat/parley-tui/internal/config"
	"github.com/parley-chat/parley-tui/internal/lifecycle"
	"github.com/parley-chat/parley-tui/internal/store"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// storeEventMsg carries a conversation-store mutation into the update loop.
type storeEventMsg struct {
	event store.Event
}

// modelEventMsg carries a lifecycle snapshot into the update loop.
type modelEventMsg struct {
	snapshot lifecycle.Snapshot
}

// turnEventMsg signals that generating state or the last error changed.
type turnEventMsg struct{}

// sendDoneMsg reports the completed (or failed) turn.
type sendDoneMsg struct {
	err error
}

// modelLoadedMsg reports the initial model load result.
type modelLoadedMsg struct {
	err error
}

// streamTickMsg drives streaming-buffer flushes while generating.
type streamTickMsg struct{}

// ConfigReloadedMsg delivers a fresh configuration after the config file
// changed on disk. Sent from outside the program by the config watcher.
type ConfigReloadedMsg struct {
	Cfg *config.Config
}

// waitForEvent returns a command that delivers the next app event. The
// update loop re-issues it after every delivery.
func waitForEvent(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}
