// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/parley-chat/parley-tui/internal/model"
	"github.com/parley-chat/parley-tui/internal/ui/styles"
	"github.com/parley-chat/parley-tui/internal/util"
)

// =============================================================================
// CONVERSATION SIDEBAR
// =============================================================================

// Sidebar renders the conversation list beside the transcript.
type Sidebar struct {
	Conversations []*model.Conversation
	ActiveID      string
	Width         int
	Height        int
}

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(styles.Overlay)

	sidebarTitleStyle = lipgloss.NewStyle().
				Foreground(styles.Cyan).
				Bold(true).
				Padding(0, 1)

	itemStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Padding(0, 1)

	activeItemStyle = lipgloss.NewStyle().
			Foreground(styles.TextInverse).
			Background(styles.Purple).
			Bold(true).
			Padding(0, 1)
)

// Render lays out the sidebar at the configured size.
func (s Sidebar) Render() string {
	inner := s.Width - 1 // border column

	var lines []string
	lines = append(lines, sidebarTitleStyle.Render("Conversations"))
	lines = append(lines, mutedStyle.Padding(0, 1).Render(fmt.Sprintf("%d total", len(s.Conversations))))
	lines = append(lines, "")

	for _, conv := range s.Conversations {
		// Derived titles can carry line breaks from multi-line prompts.
		title := runewidth.Truncate(util.CollapseSpace(conv.DisplayTitle()), inner-4, "…")
		label := fmt.Sprintf("%s (%d)", title, conv.MessageCount())
		label = runewidth.Truncate(label, inner-2, "…")
		if conv.ID == s.ActiveID {
			lines = append(lines, activeItemStyle.Width(inner).Render(label))
		} else {
			lines = append(lines, itemStyle.Width(inner).Render(label))
		}
	}

	for len(lines) < s.Height {
		lines = append(lines, "")
	}
	if len(lines) > s.Height {
		lines = lines[:s.Height]
	}

	return sidebarStyle.Width(s.Width).Height(s.Height).Render(strings.Join(lines, "\n"))
}
