// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strings"

// TruncateRunes shortens s to at most max runes, appending ellipsis when
// anything was cut. Counting runes rather than bytes keeps multi-byte
// UTF-8 text intact.
func TruncateRunes(s string, max int, ellipsis string) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + ellipsis
}

// FirstLine returns everything up to the first line break.
func FirstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// CollapseSpace trims s and collapses internal whitespace runs to single
// spaces. Useful for one-line previews of multi-line messages.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
