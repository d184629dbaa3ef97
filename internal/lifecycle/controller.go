// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifecycle drives the engine handle through the model-loading
// state machine: idle -> loading -> {ready | error}, ready -> loading on an
// explicit model switch, error -> loading on retry.
package lifecycle

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/parley-chat/parley-tui/internal/engine"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the model lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of the lifecycle state.
type Snapshot struct {
	Status   Status
	Progress int // always within [0,100]
	Stage    string
	ModelID  string
	Err      string // load failure message, empty unless Status is error
}

// Observer receives lifecycle snapshots. Observers are called synchronously
// on the goroutine driving the load.
type Observer func(Snapshot)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the engine handle and mediates model loading.
//
// Engine progress callbacks can arrive far faster than a UI can usefully
// render, so observer notifications during loading are throttled with a
// rate limiter; state transitions (loading, ready, error) always notify.
type Controller struct {
	handle  *engine.Handle
	limiter *rate.Limiter

	mu        sync.Mutex
	status    Status
	progress  int
	stage     string
	modelID   string
	lastErr   string
	observers []Observer
}

// maxProgressRate caps progress notifications per second during a load.
const maxProgressRate = 30

// NewController creates a controller owning the given handle.
func NewController(handle *engine.Handle) *Controller {
	return &Controller{
		handle:  handle,
		limiter: rate.NewLimiter(rate.Limit(maxProgressRate), 1),
	}
}

// Handle returns the engine handle for generation calls. The handle itself
// guards against use while not ready.
func (c *Controller) Handle() *engine.Handle {
	return c.handle
}

// Subscribe registers an observer for lifecycle changes.
func (c *Controller) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// =============================================================================
// LOADING
// =============================================================================

// Load drives a full model load (or switch, or retry). The transition to
// loading resets progress to 0 and clears the last error. While the load is
// in flight the handle is not ready, so generation requests fail with
// engine.ErrNotInitialized rather than queue.
//
// On failure progress is left at its last value: it is a snapshot of how
// far loading got.
func (c *Controller) Load(ctx context.Context, modelID string) error {
	c.mu.Lock()
	c.status = StatusLoading
	c.progress = 0
	c.stage = "starting"
	c.modelID = modelID
	c.lastErr = ""
	c.mu.Unlock()
	c.notify()

	err := c.handle.Initialize(ctx, modelID, c.onProgress)

	c.mu.Lock()
	if err != nil {
		c.status = StatusError
		c.lastErr = err.Error()
	} else {
		c.status = StatusReady
		c.progress = 100
		c.stage = "ready"
	}
	c.mu.Unlock()
	c.notify()

	return err
}

// onProgress folds engine progress into the bounded integer shown to the
// application. Values are clamped to [0,100] and never move backwards, even
// when the engine's reporting is not strictly increasing.
func (c *Controller) onProgress(p engine.Progress) {
	c.mu.Lock()
	if c.status != StatusLoading {
		c.mu.Unlock()
		return
	}

	percent := p.Percent
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent > c.progress {
		c.progress = percent
	}
	if p.Stage != "" {
		c.stage = p.Stage
	}
	c.mu.Unlock()

	if c.limiter.Allow() {
		c.notify()
	}
}

// Shutdown releases the engine and returns to idle.
func (c *Controller) Shutdown() {
	c.handle.Shutdown()

	c.mu.Lock()
	c.status = StatusIdle
	c.progress = 0
	c.stage = ""
	c.modelID = ""
	c.mu.Unlock()
	c.notify()
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Snapshot returns the current lifecycle state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status:   c.status,
		Progress: c.progress,
		Stage:    c.stage,
		ModelID:  c.modelID,
		Err:      c.lastErr,
	}
}

// Status returns the current lifecycle status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Ready reports whether generation requests would be accepted.
func (c *Controller) Ready() bool {
	return c.Status() == StatusReady && c.handle.Ready()
}

func (c *Controller) notify() {
	c.mu.Lock()
	snap := Snapshot{
		Status:   c.status,
		Progress: c.progress,
		Stage:    c.stage,
		ModelID:  c.modelID,
		Err:      c.lastErr,
	}
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
}
