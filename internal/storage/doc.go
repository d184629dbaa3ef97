// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable conversation persistence.
//
// The Store interface is the narrow contract the synchronizer writes
// through: keyed records with upsert semantics, retrieval sorted by last
// update, and explicit delete/clear. The bundled implementation keeps
// records in a local SQLite database (pure-Go driver, no cgo).
//
// Storage is best effort: failures are reported to the caller and never
// affect in-memory correctness.
package storage
