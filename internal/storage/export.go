// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// CONVERSATION EXPORT
// =============================================================================

// ExportMarkdown renders the conversation as a Markdown document with role
// labels and timestamps.
func (r Record) ExportMarkdown() string {
	var sb strings.Builder
	title := r.Title
	if title == "" {
		title = "Conversation " + r.ID
	}
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("Created: " + r.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range r.Messages {
		label := "**User**"
		switch msg.Role {
		case "assistant":
			label = "**Assistant**"
		case "system":
			label = "**System**"
		}
		sb.WriteString(label + " (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// ExportJSON renders the conversation as pretty-printed JSON.
func (r Record) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
