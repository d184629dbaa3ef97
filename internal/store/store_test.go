// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-chat/parley-tui/internal/model"
)

// recorder collects events for assertions.
type recorder struct {
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func TestCreateSelectsNewConversation(t *testing.T) {
	s := New()
	rec := &recorder{}
	s.Subscribe(rec.listen)

	first := s.Create()
	second := s.Create()

	assert.Equal(t, 2, s.Count())
	assert.Equal(t, second.ID, s.ActiveID(), "creation must select the new conversation")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []EventType{EventCreate, EventCreate}, rec.types())
}

func TestDeleteActivePromotesFirst(t *testing.T) {
	s := New()
	a := s.Create()
	b := s.Create()
	require.NoError(t, s.SetActive(a.ID))

	rec := &recorder{}
	s.Subscribe(rec.listen)
	require.NoError(t, s.Delete(a.ID))

	assert.Equal(t, b.ID, s.ActiveID(), "selection must fall to the first remaining conversation")
	assert.Equal(t, []EventType{EventDelete, EventSelect}, rec.types())
}

func TestDeleteInactiveKeepsSelection(t *testing.T) {
	s := New()
	a := s.Create()
	b := s.Create()

	rec := &recorder{}
	s.Subscribe(rec.listen)
	require.NoError(t, s.Delete(a.ID))

	assert.Equal(t, b.ID, s.ActiveID())
	assert.Equal(t, []EventType{EventDelete}, rec.types(), "no reselect when the deleted conversation was not active")
}

func TestDeleteLastClearsSelection(t *testing.T) {
	s := New()
	a := s.Create()
	require.NoError(t, s.Delete(a.ID))

	assert.Empty(t, s.ActiveID())
	assert.True(t, s.IsEmpty())
	assert.Nil(t, s.Active())
}

func TestDeleteUnknownID(t *testing.T) {
	s := New()
	s.Create()
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
	assert.Equal(t, 1, s.Count())
}

func TestSetActiveUnknownID(t *testing.T) {
	s := New()
	a := s.Create()
	assert.ErrorIs(t, s.SetActive("missing"), ErrNotFound)
	assert.Equal(t, a.ID, s.ActiveID(), "failed select must not change selection")
}

func TestSetActiveSameIDEmitsNothing(t *testing.T) {
	s := New()
	a := s.Create()

	rec := &recorder{}
	s.Subscribe(rec.listen)
	require.NoError(t, s.SetActive(a.ID))
	assert.Empty(t, rec.events)
}

func TestAppendMessageNoActive(t *testing.T) {
	s := New()
	id := s.AppendMessage(model.NewUserMessage("hello"))
	assert.Empty(t, id, "append with no selection must be a no-op")
	assert.True(t, s.IsEmpty(), "append must never create a conversation")
}

func TestAppendMessageReturnsConversationID(t *testing.T) {
	s := New()
	a := s.Create()

	id := s.AppendMessage(model.NewUserMessage("hello"))
	assert.Equal(t, a.ID, id)

	conv := s.Active()
	require.NotNil(t, conv)
	assert.Equal(t, 1, conv.MessageCount())
	assert.Equal(t, "hello", conv.Title, "first user message derives the title")
}

func TestAppendMessageToInactiveConversation(t *testing.T) {
	s := New()
	origin := s.Create()
	s.Create() // user switched away

	ok := s.AppendMessageTo(origin.ID, model.NewAssistantMessage("late reply"))
	require.True(t, ok)

	conv := s.Get(origin.ID)
	require.NotNil(t, conv)
	require.Equal(t, 1, conv.MessageCount())
	assert.Equal(t, "late reply", conv.Messages[0].Content)

	active := s.Active()
	assert.Equal(t, 0, active.MessageCount(), "reply must not leak into the active conversation")
}

func TestAppendMessageToDeletedConversation(t *testing.T) {
	s := New()
	origin := s.Create()
	s.Create()
	require.NoError(t, s.Delete(origin.ID))

	ok := s.AppendMessageTo(origin.ID, model.NewAssistantMessage("orphan"))
	assert.False(t, ok, "reply to a deleted conversation must be dropped")
}

func TestUpdateMessage(t *testing.T) {
	s := New()
	s.Create()
	msg := model.NewUserMessage("draft")
	s.AppendMessage(msg)

	assert.True(t, s.UpdateMessage(msg.ID, "final"))
	assert.Equal(t, "final", s.Active().Messages[0].Content)
	assert.False(t, s.UpdateMessage("missing", "x"))
}

func TestClearMessagesKeepsConversation(t *testing.T) {
	s := New()
	a := s.Create()
	s.AppendMessage(model.NewUserMessage("hello"))

	rec := &recorder{}
	s.Subscribe(rec.listen)
	s.ClearMessages()

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 0, s.Active().MessageCount())
	assert.Equal(t, []Event{{Type: EventClear, ConversationID: a.ID}}, rec.events)
}

func TestRename(t *testing.T) {
	s := New()
	a := s.Create()
	require.NoError(t, s.Rename(a.ID, "Budget Review"))

	conv := s.Get(a.ID)
	assert.Equal(t, "Budget Review", conv.Title)
	assert.True(t, conv.TitleDerived)

	s.AppendMessage(model.NewUserMessage("unrelated"))
	assert.Equal(t, "Budget Review", s.Get(a.ID).Title, "explicit title must survive later messages")

	assert.ErrorIs(t, s.Rename("missing", "x"), ErrNotFound)
}

func TestLoadAllReplacesAndSelectsFirst(t *testing.T) {
	s := New()
	s.Create()

	c1 := model.NewConversation()
	c1.Rename("restored one")
	c2 := model.NewConversation()
	c2.Rename("restored two")

	rec := &recorder{}
	s.Subscribe(rec.listen)
	s.LoadAll([]*model.Conversation{c1, c2})

	assert.Equal(t, 2, s.Count())
	assert.Equal(t, c1.ID, s.ActiveID())
	assert.Equal(t, []EventType{EventLoad}, rec.types())

	s.LoadAll(nil)
	assert.True(t, s.IsEmpty())
	assert.Empty(t, s.ActiveID())
}

func TestReadAccessorsReturnCopies(t *testing.T) {
	s := New()
	s.Create()
	s.AppendMessage(model.NewUserMessage("original"))

	snapshot := s.Active()
	snapshot.Messages[0].Content = "mutated"
	snapshot.Rename("mutated title")

	fresh := s.Active()
	assert.Equal(t, "original", fresh.Messages[0].Content)
	assert.NotEqual(t, "mutated title", fresh.Title)

	all := s.All()
	require.Len(t, all, 1)
	all[0].ClearMessages()
	assert.Equal(t, 1, s.Active().MessageCount())
}

func TestListenerMayCallBackIntoStore(t *testing.T) {
	s := New()
	var sawCount int
	s.Subscribe(func(ev Event) {
		if ev.Type == EventCreate {
			sawCount = s.Count() // must not deadlock
		}
	})
	s.Create()
	assert.Equal(t, 1, sawCount)
}
