// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/parley-chat/parley-tui/internal/lifecycle"
	"github.com/parley-chat/parley-tui/internal/ui/styles"
	"github.com/parley-chat/parley-tui/internal/util"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar describes the bottom status line of the chat screen.
type StatusBar struct {
	ModelID      string
	ModelStatus  lifecycle.Status
	LoadProgress int
	LoadStage    string
	Generating   bool
	LastError    string
	Width        int
}

var (
	barStyle = lipgloss.NewStyle().
			Background(styles.SurfaceDim).
			Foreground(styles.TextSecondary).
			Padding(0, 1)

	readyStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)
)

// Render lays out the status bar at the configured width.
func (b StatusBar) Render() string {
	left := b.modelSegment()

	right := ""
	switch {
	case b.LastError != "":
		// Wrapped errors can span lines; the bar only has one.
		right = errorStyle.Render("✗ " + util.FirstLine(b.LastError))
	case b.Generating:
		right = loadingStyle.Render("generating…") + mutedStyle.Render("  esc to cancel")
	}

	gap := b.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		// Error text gets priority when space runs out.
		right = truncateToWidth(right, b.Width-lipgloss.Width(left)-3)
		gap = 1
	}

	return barStyle.Width(b.Width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b StatusBar) modelSegment() string {
	name := b.ModelID
	if name == "" {
		name = "no model"
	}

	switch b.ModelStatus {
	case lifecycle.StatusReady:
		return readyStyle.Render("● ") + name
	case lifecycle.StatusLoading:
		stage := b.LoadStage
		if stage == "" {
			stage = "loading"
		}
		return loadingStyle.Render("◐ ") + fmt.Sprintf("%s  %s %d%%", name, stage, b.LoadProgress)
	case lifecycle.StatusError:
		return errorStyle.Render("● ") + name
	default:
		return mutedStyle.Render("○ ") + name
	}
}

func truncateToWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}
