// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	title_derived INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	seq             INTEGER NOT NULL,
	id              TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	timestamp       INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated
	ON conversations(updated_at DESC);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore persists conversations in a local SQLite database.
//
// Timestamps are stored as Unix nanoseconds so records round-trip without
// precision loss.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultPath returns the default database location, ~/.parley/parley.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley", "parley.db"), nil
}

// OpenSQLite opens (creating if necessary) the database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Message: "failed to create database directory", Cause: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Message: "failed to open database", Cause: err}
	}

	// WAL keeps reads cheap while the debounced writer commits.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, &StorageError{Message: "failed to configure database", Cause: err}
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StorageError{Message: "failed to create schema", Cause: err}
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// GetAll returns all stored conversations, most recently updated first.
func (s *SQLiteStore) GetAll() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, title, title_derived, created_at, updated_at
		 FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, &StorageError{Message: "failed to list conversations", Cause: err}
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Message: "failed to list conversations", Cause: err}
	}

	for i := range records {
		msgs, err := s.loadMessages(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Messages = msgs
	}
	return records, nil
}

// Get retrieves a single conversation by id.
func (s *SQLiteStore) Get(id string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT id, title, title_derived, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)

	rec, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	msgs, err := s.loadMessages(id)
	if err != nil {
		return nil, err
	}
	rec.Messages = msgs
	return &rec, nil
}

func (s *SQLiteStore) loadMessages(convID string) ([]MessageRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, timestamp
		 FROM messages WHERE conversation_id = ? ORDER BY seq`, convID)
	if err != nil {
		return nil, &StorageError{Message: "failed to load messages", Cause: err}
	}
	defer rows.Close()

	msgs := make([]MessageRecord, 0)
	for rows.Next() {
		var msg MessageRecord
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &ts); err != nil {
			return nil, &StorageError{Message: "failed to scan message", Cause: err}
		}
		msg.Timestamp = time.Unix(0, ts)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Message: "failed to load messages", Cause: err}
	}
	return msgs, nil
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Put upserts a conversation and its full message log in one transaction.
func (s *SQLiteStore) Put(rec Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Message: "failed to begin transaction", Cause: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO conversations (id, title, title_derived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			title_derived = excluded.title_derived,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Title, boolToInt(rec.TitleDerived),
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return &StorageError{Message: "failed to upsert conversation", Cause: err}
	}

	// The record carries the complete log; replacing the rows is simpler
	// and no slower than diffing for the sizes involved.
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, rec.ID); err != nil {
		return &StorageError{Message: "failed to replace messages", Cause: err}
	}

	stmt, err := tx.Prepare(
		`INSERT INTO messages (conversation_id, seq, id, role, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &StorageError{Message: "failed to prepare insert", Cause: err}
	}
	defer stmt.Close()

	for i, msg := range rec.Messages {
		if _, err := stmt.Exec(rec.ID, i, msg.ID, msg.Role, msg.Content, msg.Timestamp.UnixNano()); err != nil {
			return &StorageError{Message: "failed to insert message", Cause: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Message: "failed to commit", Cause: err}
	}
	return nil
}

// Delete removes a conversation and (via cascade) its messages.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Message: "failed to delete conversation", Cause: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Clear removes all conversations.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM conversations`); err != nil {
		return &StorageError{Message: "failed to clear conversations", Cause: err}
	}
	return nil
}

// EnforceLimit deletes the oldest conversations (by UpdatedAt) until at
// most max remain. A max of 0 means unlimited.
func (s *SQLiteStore) EnforceLimit(max int) error {
	if max <= 0 {
		return nil
	}
	_, err := s.db.Exec(
		`DELETE FROM conversations WHERE id IN (
			SELECT id FROM conversations
			ORDER BY updated_at DESC LIMIT -1 OFFSET ?
		)`, max)
	if err != nil {
		return &StorageError{Message: "failed to enforce limit", Cause: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (Record, error) {
	var rec Record
	var derived int
	var created, updated int64
	if err := row.Scan(&rec.ID, &rec.Title, &derived, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, &StorageError{Message: "failed to scan conversation", Cause: err}
	}
	rec.TitleDerived = derived != 0
	rec.CreatedAt = time.Unix(0, created)
	rec.UpdatedAt = time.Unix(0, updated)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
