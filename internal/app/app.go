// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parley-chat/parley-tui/internal/config"
	"github.com/parley-chat/parley-tui/internal/engine"
	"github.com/parley-chat/parley-tui/internal/lifecycle"
	"github.com/parley-chat/parley-tui/internal/model"
	"github.com/parley-chat/parley-tui/internal/orchestrator"
	"github.com/parley-chat/parley-tui/internal/persist"
	"github.com/parley-chat/parley-tui/internal/storage"
	"github.com/parley-chat/parley-tui/internal/store"
	"github.com/parley-chat/parley-tui/internal/util"
)

// =============================================================================
// APP
// =============================================================================

// App is the composition root for the chat core.
type App struct {
	cfg *config.Config

	store     *store.Store
	lifecycle *lifecycle.Controller
	orch      *orchestrator.Orchestrator
	sync      *persist.Synchronizer
	backend   *storage.SQLiteStore
}

// New builds an App from the given configuration. The returned App owns the
// storage backend; call Close to flush and release it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		p, err := storage.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		dbPath = p
	} else {
		p, err := util.ExpandHome(dbPath)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		dbPath = p
	}

	backend, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening conversation database: %w", err)
	}

	st := store.New()

	handle := engine.NewHandle(engine.NewOllamaFactory(&engine.OllamaConfig{
		BaseURL:     cfg.Engine.BaseURL,
		Timeout:     time.Duration(cfg.Engine.TimeoutSecs) * time.Second,
		PullMissing: cfg.Engine.PullMissing,
	}))

	ctl := lifecycle.NewController(handle)

	orch := orchestrator.New(st, handle, engine.Options{
		Temperature: cfg.Generation.Temperature,
		MaxTokens:   cfg.Generation.MaxTokens,
		Stream:      cfg.Generation.Stream,
	})

	syn := persist.New(st, backend, persist.Config{
		Debounce: time.Duration(cfg.Storage.FlushDebounceMs) * time.Millisecond,
	})

	return &App{
		cfg:       cfg,
		store:     st,
		lifecycle: ctl,
		orch:      orch,
		sync:      syn,
		backend:   backend,
	}, nil
}

// Start loads persisted conversations into the store and begins observing
// mutations for persistence. With an empty database a first conversation is
// created so the UI always has somewhere to type. Model loading is separate;
// call LoadModel (typically in a goroutine) once observers are attached.
func (a *App) Start() error {
	a.sync.Start()

	// Prune before loading so the store never holds conversations the
	// database just dropped. Best effort; failures never block startup.
	if max := a.cfg.Storage.MaxConversations; max > 0 {
		_ = a.backend.EnforceLimit(max)
	}

	convs, needFirst, err := a.sync.LoadAll()
	if err != nil {
		return fmt.Errorf("loading conversations: %w", err)
	}
	a.store.LoadAll(convs)
	if needFirst {
		a.store.Create()
	}
	return nil
}

// LoadModel loads the configured default model, or modelID when non-empty.
// Blocks until the model is ready or the load fails.
func (a *App) LoadModel(ctx context.Context, modelID string) error {
	if modelID == "" {
		modelID = a.cfg.DefaultModel
	}
	return a.lifecycle.Load(ctx, modelID)
}

// Close flushes pending writes and releases the engine and the database.
func (a *App) Close() error {
	a.sync.Close()
	a.lifecycle.Shutdown()
	return a.backend.Close()
}

// =============================================================================
// OBSERVATION
// =============================================================================

// OnConversationEvent subscribes to conversation-store mutations.
func (a *App) OnConversationEvent(l store.Listener) {
	a.store.Subscribe(l)
}

// OnModelEvent subscribes to model lifecycle snapshots.
func (a *App) OnModelEvent(obs lifecycle.Observer) {
	a.lifecycle.Subscribe(obs)
}

// OnTurnEvent registers the callback fired when generation state or the
// last error changes.
func (a *App) OnTurnEvent(fn func()) {
	a.orch.SetNotify(fn)
}

// OnToken registers the receiver for streamed reply fragments.
func (a *App) OnToken(sink orchestrator.TokenSink) {
	a.orch.SetTokenSink(sink)
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation creates an empty conversation and makes it active.
// Returns the new conversation's id.
func (a *App) CreateConversation() string {
	return a.store.Create().ID
}

// SelectConversation makes the identified conversation active.
func (a *App) SelectConversation(id string) error {
	return a.store.SetActive(id)
}

// DeleteConversation removes the conversation everywhere, including from
// disk. Deleting the active conversation promotes the next remaining one.
func (a *App) DeleteConversation(id string) error {
	return a.store.Delete(id)
}

// RenameConversation sets a user-chosen title. Empty or whitespace-only
// titles are rejected; a successful rename stops automatic title
// derivation for that conversation.
func (a *App) RenameConversation(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("conversation title cannot be empty")
	}
	return a.store.Rename(id, title)
}

// ClearActiveConversation removes every message from the active
// conversation and resets the engine's generation context.
func (a *App) ClearActiveConversation() {
	a.orch.Clear()
}

// Conversations returns all conversations, most recently created first.
func (a *App) Conversations() []*model.Conversation {
	return a.store.All()
}

// ActiveConversation returns a copy of the active conversation, or nil.
func (a *App) ActiveConversation() *model.Conversation {
	return a.store.Active()
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// SendMessage runs one user turn against the loaded model. See
// orchestrator.Send for the exact semantics; failures are also recorded in
// the state snapshot for rendering.
func (a *App) SendMessage(ctx context.Context, text string) error {
	return a.orch.Send(ctx, text)
}

// AbortGeneration cancels the in-flight reply, best effort, and always
// clears the generating flag.
func (a *App) AbortGeneration() {
	a.orch.Abort()
}

// SwitchModel unloads the current model and loads another. Conversations
// are untouched; only the engine changes.
func (a *App) SwitchModel(ctx context.Context, modelID string) error {
	if strings.TrimSpace(modelID) == "" {
		return fmt.Errorf("model id cannot be empty")
	}
	return a.lifecycle.Load(ctx, modelID)
}

// =============================================================================
// SEARCH AND EXPORT
// =============================================================================

// SearchConversations finds stored conversations matching the query.
// Matching is caseless and diacritic-insensitive.
func (a *App) SearchConversations(query string) ([]storage.Record, error) {
	a.sync.Flush()
	return a.backend.Search(query)
}

// ExportConversation renders a stored conversation as "markdown" or "json".
func (a *App) ExportConversation(id, format string) ([]byte, error) {
	a.sync.Flush()
	rec, err := a.backend.Get(id)
	if err != nil {
		return nil, err
	}
	switch format {
	case "json":
		return rec.ExportJSON()
	case "markdown", "md", "":
		return []byte(rec.ExportMarkdown()), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}
