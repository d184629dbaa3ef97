// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the chat screen.
type KeyMap struct {
	Submit   key.Binding
	Cancel   key.Binding
	Quit     key.Binding
	NewConv  key.Binding
	DelConv  key.Binding
	Rename   key.Binding
	ClearMsg key.Binding
	PrevConv key.Binding
	NextConv key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Help     key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send message"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel generation"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		NewConv: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new conversation"),
		),
		DelConv: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete conversation"),
		),
		Rename: key.NewBinding(
			key.WithKeys("f2"),
			key.WithHelp("F2", "rename conversation"),
		),
		ClearMsg: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear conversation"),
		),
		PrevConv: key.NewBinding(
			key.WithKeys("ctrl+up", "ctrl+p"),
			key.WithHelp("C-up", "previous conversation"),
		),
		NextConv: key.NewBinding(
			key.WithKeys("ctrl+down"),
			key.WithHelp("C-down", "next conversation"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("C-h", "toggle help"),
		),
	}
}
