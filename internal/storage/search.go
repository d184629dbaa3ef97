// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// =============================================================================
// CONVERSATION SEARCH
// =============================================================================

// Search finds stored conversations whose title or message content matches
// the query. Matching is caseless and diacritic-insensitive, so "cafe"
// finds "Café". An empty query returns everything.
//
// Results keep the GetAll order (most recently updated first).
func (s *SQLiteStore) Search(query string) ([]Record, error) {
	all, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	matcher := newMatcher()
	var results []Record
	for _, rec := range all {
		if recordMatches(matcher, rec, query) {
			results = append(results, rec)
		}
	}
	return results, nil
}

func newMatcher() *search.Matcher {
	return search.New(language.Und, search.Loose)
}

func recordMatches(m *search.Matcher, rec Record, query string) bool {
	if start, _ := m.IndexString(rec.Title, query); start >= 0 {
		return true
	}
	for _, msg := range rec.Messages {
		if start, _ := m.IndexString(msg.Content, query); start >= 0 {
			return true
		}
	}
	return false
}
