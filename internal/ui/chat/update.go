// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-chat/parley-tui/internal/lifecycle"
)

// streamInterval paces transcript refreshes during generation.
const streamInterval = 33 * time.Millisecond

// =============================================================================
// UPDATE LOOP
// =============================================================================

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeEventMsg, turnEventMsg, modelEventMsg:
		m.state = m.app.State()
		m.refreshViewport()
		return m, waitForEvent(m.events)

	case modelLoadedMsg:
		m.state = m.app.State()
		return m, nil

	case streamTickMsg:
		if chunk, ok := m.streamBuf.Flush(); ok {
			m.streamText += chunk
			m.refreshViewport()
		}
		if m.state.Generating {
			return m, streamTick()
		}
		// Turn over; whatever remains lands via sendDoneMsg.
		return m, nil

	case sendDoneMsg:
		m.streamBuf.Drain()
		m.streamText = ""
		m.cancelMgr.cancel()
		m.state = m.app.State()
		m.refreshViewport()
		return m, nil

	case ConfigReloadedMsg:
		if msg.Cfg != nil {
			m.cfg = msg.Cfg
			m.layout()
			m.refreshViewport()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateComponents(msg)
}

func streamTick() tea.Cmd {
	return tea.Tick(streamInterval, func(time.Time) tea.Msg {
		return streamTickMsg{}
	})
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.renaming {
		return m.handleRenameKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelMgr.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.state.Generating {
			m.cancelMgr.cancel()
			m.app.AbortGeneration()
			m.streamBuf.Drain()
			m.streamText = ""
			m.state = m.app.State()
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.state.Generating || !m.modelReady() {
			return m, nil
		}
		m.input.Reset()
		return m, tea.Batch(m.sendCmd(text), streamTick())

	case key.Matches(msg, m.keys.NewConv):
		m.app.CreateConversation()
		m.state = m.app.State()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.DelConv):
		if id := m.state.ActiveConversationID; id != "" {
			_ = m.app.DeleteConversation(id)
			m.state = m.app.State()
			m.refreshViewport()
		}
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		if conv := m.app.ActiveConversation(); conv != nil {
			m.renaming = true
			m.rename.SetValue(conv.DisplayTitle())
			m.rename.CursorEnd()
			m.rename.Focus()
			m.input.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.ClearMsg):
		m.app.ClearActiveConversation()
		m.streamText = ""
		m.state = m.app.State()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.PrevConv):
		m.selectAdjacent(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextConv):
		m.selectAdjacent(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		m.refreshViewport()
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.renaming = false
		m.rename.Blur()
		m.input.Focus()
		return m, nil

	case "enter":
		title := m.rename.Value()
		if id := m.state.ActiveConversationID; id != "" {
			// Rejected titles (all whitespace) just leave rename mode.
			_ = m.app.RenameConversation(id, title)
		}
		m.renaming = false
		m.rename.Blur()
		m.input.Focus()
		m.state = m.app.State()
		return m, nil
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return *m, tea.Batch(cmds...)
}

// sendCmd runs one turn off the UI loop, with a cancellable context wired
// to the Esc binding.
func (m *Model) sendCmd(text string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)
	a := m.app

	return func() tea.Msg {
		err := a.SendMessage(ctx, text)
		cancel()
		return sendDoneMsg{err: err}
	}
}

// selectAdjacent moves the active conversation up or down the sidebar.
func (m *Model) selectAdjacent(delta int) {
	convs := m.state.Conversations
	if len(convs) < 2 {
		return
	}
	idx := -1
	for i, c := range convs {
		if c.ID == m.state.ActiveConversationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	next := idx + delta
	if next < 0 || next >= len(convs) {
		return
	}
	_ = m.app.SelectConversation(convs[next].ID)
	m.streamText = ""
	m.state = m.app.State()
	m.refreshViewport()
}

func (m Model) modelReady() bool {
	return m.state.ModelStatus == lifecycle.StatusReady
}
