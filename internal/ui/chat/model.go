// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-chat/parley-tui/internal/app"
	"github.com/parley-chat/parley-tui/internal/config"
	"github.com/parley-chat/parley-tui/internal/lifecycle"
	"github.com/parley-chat/parley-tui/internal/store"
	"github.com/parley-chat/parley-tui/internal/ui/styles"
)

// eventBuffer bounds the app-to-UI channel; events beyond it are dropped
// and the next snapshot render catches up.
const eventBuffer = 64

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	app *app.App
	cfg *config.Config

	// Cached snapshot; refreshed on every app event.
	state app.State

	// Dimensions
	width  int
	height int

	// UI components
	viewport viewport.Model
	input    textinput.Model
	rename   textinput.Model
	spinner  spinner.Model

	keys KeyMap

	// renaming switches the input line to conversation-title editing.
	renaming bool

	showHelp bool

	// Streaming state. streamText holds the partial reply shown at the
	// bottom of the transcript until the turn completes.
	streamBuf  *StreamingBuffer
	streamText string

	cancelMgr *cancelManager

	// events delivers app callbacks into the update loop.
	events chan tea.Msg

	// renderer is nil when markdown rendering is disabled or unavailable.
	renderer *glamour.TermRenderer
}

// New creates the chat screen and subscribes it to the app's events.
func New(a *app.App, cfg *config.Config) Model {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.Prompt = "❯ "
	input.PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	input.Focus()

	rename := textinput.New()
	rename.Placeholder = "New title…"
	rename.Prompt = "rename: "
	rename.PromptStyle = lipgloss.NewStyle().Foreground(styles.Amber).Bold(true)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Purple)

	var renderer *glamour.TermRenderer
	if cfg.UI.Markdown {
		// Plain text fallback when the renderer cannot initialize.
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	}

	m := Model{
		app:       a,
		cfg:       cfg,
		state:     a.State(),
		viewport:  viewport.New(0, 0),
		input:     input,
		rename:    rename,
		spinner:   sp,
		keys:      DefaultKeyMap(),
		streamBuf: NewStreamingBuffer(),
		cancelMgr: newCancelManager(),
		events:    make(chan tea.Msg, eventBuffer),
		renderer:  renderer,
	}

	a.OnConversationEvent(func(ev store.Event) {
		m.post(storeEventMsg{event: ev})
	})
	a.OnModelEvent(func(snap lifecycle.Snapshot) {
		m.post(modelEventMsg{snapshot: snap})
	})
	a.OnTurnEvent(func() {
		m.post(turnEventMsg{})
	})
	a.OnToken(func(_, token string) {
		m.streamBuf.Write(token)
	})

	return m
}

// post delivers an event without ever blocking an app goroutine.
func (m Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

// Init starts event delivery and kicks off the initial model load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		m.spinner.Tick,
		textinput.Blink,
		m.loadModelCmd(""),
	)
}

// loadModelCmd loads modelID (or the configured default) off the UI loop.
func (m Model) loadModelCmd(modelID string) tea.Cmd {
	a := m.app
	return func() tea.Msg {
		err := a.LoadModel(context.Background(), modelID)
		return modelLoadedMsg{err: err}
	}
}
