// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/parley-chat/parley-tui/internal/model"
	"github.com/parley-chat/parley-tui/internal/ui/components"
	"github.com/parley-chat/parley-tui/internal/ui/styles"
)

const sidebarWidth = 28

var (
	userLabelStyle = lipgloss.NewStyle().
			Foreground(styles.UserLabel).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(styles.AssistantLabel).
				Bold(true)

	systemLabelStyle = lipgloss.NewStyle().
				Foreground(styles.SystemFg).
				Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	helpStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout recomputes component sizes after a resize or mode change.
func (m *Model) layout() {
	transcriptWidth := m.width
	if m.showSidebar() {
		transcriptWidth -= sidebarWidth
	}

	// Status bar, input line, and optionally the help block.
	chrome := 2
	if m.showHelp {
		chrome += 2
	}

	m.viewport.Width = transcriptWidth
	m.viewport.Height = m.height - chrome
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.input.Width = transcriptWidth - 4
	m.rename.Width = transcriptWidth - 12
}

func (m Model) showSidebar() bool {
	return !m.cfg.UI.CompactMode && m.width >= 2*sidebarWidth
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport rebuilds the transcript and keeps it pinned to the
// bottom while following new content.
func (m *Model) refreshViewport() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTranscript() string {
	conv := activeConversation(m.state.Conversations, m.state.ActiveConversationID)
	if conv == nil {
		return emptyStyle.Render("No conversation. Press Ctrl+N to start one.")
	}

	var sections []string
	for _, msg := range conv.Messages {
		sections = append(sections, m.renderMessage(msg))
	}

	if m.state.Generating {
		partial := m.streamText
		if partial == "" {
			partial = m.spinner.View() + " thinking…"
		}
		sections = append(sections,
			assistantLabelStyle.Render(model.RoleAssistant.DisplayName())+"\n"+partial)
	}

	if len(sections) == 0 {
		return emptyStyle.Render("Say something to begin.")
	}
	return strings.Join(sections, "\n\n")
}

func (m Model) renderMessage(msg *model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = userLabelStyle.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = assistantLabelStyle.Render(msg.Role.DisplayName())
	default:
		label = systemLabelStyle.Render(msg.Role.DisplayName())
	}

	if m.cfg.UI.ShowTimestamps {
		label += timestampStyle.Render("  " + msg.Timestamp.Format("15:04"))
	}

	content := msg.Content
	if msg.Role == model.RoleAssistant {
		if m.renderer != nil {
			if rendered, err := m.renderer.Render(content); err == nil {
				content = strings.TrimRight(rendered, "\n")
			}
		} else {
			content = components.RenderCodeBlocks(content, m.viewport.Width)
		}
	}

	return label + "\n" + content
}

func activeConversation(convs []*model.Conversation, id string) *model.Conversation {
	for _, c := range convs {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if m.width == 0 {
		return "starting…"
	}

	var inputLine string
	if m.renaming {
		inputLine = m.rename.View()
	} else {
		inputLine = m.input.View()
	}

	status := components.StatusBar{
		ModelID:      m.state.ModelID,
		ModelStatus:  m.state.ModelStatus,
		LoadProgress: m.state.LoadProgress,
		LoadStage:    m.state.LoadStage,
		Generating:   m.state.Generating,
		LastError:    m.state.LastError,
		Width:        m.width,
	}.Render()

	rows := []string{m.viewport.View(), inputLine}
	if m.showHelp {
		rows = append(rows, m.renderHelp())
	}
	rows = append(rows, status)
	main := lipgloss.JoinVertical(lipgloss.Left, rows...)

	if !m.showSidebar() {
		return main
	}

	sidebar := components.Sidebar{
		Conversations: m.state.Conversations,
		ActiveID:      m.state.ActiveConversationID,
		Width:         sidebarWidth,
		Height:        m.height,
	}.Render()

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m Model) renderHelp() string {
	bindings := []string{
		"Enter send", "Esc cancel", "C-n new", "C-x delete", "F2 rename",
		"C-l clear", "C-up/C-down switch", "C-h help", "C-c quit",
	}
	return helpStyle.Render(strings.Join(bindings, " · "))
}
