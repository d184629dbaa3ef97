// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across parley.
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - FirstLine: first line of a multi-line string
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - ExpandHome: "~/" path expansion
package util
