// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// OLLAMA CONFIGURATION
// =============================================================================

// OllamaConfig holds configuration for the Ollama-backed engine.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434).
	// Uses an explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows.
	BaseURL string

	// Timeout for short control requests like health checks (default: 30s).
	// Generation requests are not bounded by this; they run until the
	// caller aborts.
	Timeout time.Duration

	// PullMissing downloads the model when it is not present locally
	// (default: true). Pull progress drives Initialize progress reporting.
	PullMissing bool
}

// DefaultOllamaConfig returns the default Ollama engine configuration.
func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		BaseURL:     "http://127.0.0.1:11434",
		Timeout:     30 * time.Second,
		PullMissing: true,
	}
}

// =============================================================================
// OLLAMA ENGINE
// =============================================================================

// Ollama is an Engine backed by a local Ollama server.
//
// Conversation state lives entirely client-side with the Ollama chat API:
// every request carries the full message sequence, so ResetContext has no
// server-side memory to clear and Shutdown asks the server to release the
// loaded model.
type Ollama struct {
	config     *OllamaConfig
	httpClient *http.Client

	// cancel tracks the in-flight generation for Abort.
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	mu    sync.Mutex
	model string
}

// NewOllama creates an uninitialized Ollama engine.
func NewOllama(config *OllamaConfig) *Ollama {
	if config == nil {
		config = DefaultOllamaConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Ollama{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// NewOllamaFactory returns a Factory producing Ollama engines that share the
// given configuration.
func NewOllamaFactory(config *OllamaConfig) Factory {
	return func() Engine {
		return NewOllama(config)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// Initialize verifies the server is reachable, pulls the model if missing,
// and warms it into memory. Progress is reported as a bounded percentage
// with a stage description and elapsed-time hint.
func (o *Ollama) Initialize(ctx context.Context, modelID string, onProgress ProgressFunc) error {
	start := time.Now()
	report := func(percent int, stage string) {
		if onProgress != nil {
			onProgress(Progress{Percent: percent, Stage: stage, Elapsed: time.Since(start)})
		}
	}

	report(0, "connecting")
	if err := o.checkRunning(ctx); err != nil {
		return initializationError("inference backend unreachable", err)
	}
	report(5, "connected")

	exists, err := o.modelExists(ctx, modelID)
	if err != nil {
		return initializationError("failed to query model", err)
	}

	if !exists {
		if !o.config.PullMissing {
			return ErrModelNotFound
		}
		// Pull occupies the 5-90 band; fractional download progress from
		// the server is scaled into it.
		if err := o.pullModel(ctx, modelID, func(frac float64) {
			report(5+int(frac*85), "downloading weights")
		}); err != nil {
			return initializationError("failed to pull model", err)
		}
	}
	report(90, "warming up")

	// An empty chat request loads the model into memory without generating.
	if err := o.warmUp(ctx, modelID); err != nil {
		return initializationError("failed to load model", err)
	}

	o.mu.Lock()
	o.model = modelID
	o.mu.Unlock()

	report(100, "ready")
	return nil
}

func (o *Ollama) checkRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return ErrNotRunning
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &EngineError{Type: ErrTypeConnection, Message: "unexpected status from backend: " + resp.Status}
	}
	return nil
}

func (o *Ollama) modelExists(ctx context.Context, modelID string) (bool, error) {
	body, err := json.Marshal(showRequest{Name: modelID})
	if err != nil {
		return false, err
	}
	resp, err := o.post(ctx, "/api/show", body)
	if err != nil {
		return false, err
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &EngineError{Type: ErrTypeConnection, Message: "show model failed: " + resp.Status}
	}
}

// pullModel streams /api/pull status lines and reports fractional download
// progress in [0,1].
func (o *Ollama) pullModel(ctx context.Context, modelID string, onFrac func(float64)) error {
	body, err := json.Marshal(pullRequest{Name: modelID, Stream: true})
	if err != nil {
		return err
	}

	// No client timeout: pulls run for as long as the download takes.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &EngineError{Type: ErrTypeConnection, Message: "pull failed: " + resp.Status}
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var line pullStatus
		if err := dec.Decode(&line); err != nil {
			break // EOF or trailing garbage ends the pull stream
		}
		if line.Error != "" {
			return &EngineError{Type: ErrTypeInitialization, Message: line.Error}
		}
		if line.Total > 0 && onFrac != nil {
			frac := float64(line.Completed) / float64(line.Total)
			if frac < 0 {
				frac = 0
			}
			if frac > 1 {
				frac = 1
			}
			onFrac(frac)
		}
		if line.Status == "success" {
			return nil
		}
	}
	return nil
}

func (o *Ollama) warmUp(ctx context.Context, modelID string) error {
	body, err := json.Marshal(chatRequest{Model: modelID, Messages: []Message{}, Stream: false})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// Model loads can take minutes on first touch; no client timeout.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return ErrNotRunning
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &EngineError{Type: ErrTypeInitialization, Message: "warm-up failed: " + resp.Status}
	}
	return nil
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends a non-streaming chat request and returns the assistant text.
func (o *Ollama) Chat(ctx context.Context, messages []Message, opts *Options) (string, error) {
	o.mu.Lock()
	model := o.model
	o.mu.Unlock()

	reqBody := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  wireOptions(opts),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", generationError("failed to marshal request", err)
	}

	ctx, done := o.track(ctx)
	defer done()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", generationError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Generation length is unbounded; cancellation comes from the context.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", generationError("generation aborted", context.Canceled)
		}
		return "", ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", generationError("failed to decode response", err)
	}
	return result.Message.Content, nil
}

// ChatStream sends a streaming chat request. Chunks arrive on the returned
// channel; the terminating chunk carries any error and the channel closes.
func (o *Ollama) ChatStream(ctx context.Context, messages []Message, opts *Options) <-chan Chunk {
	ch := make(chan Chunk)

	o.mu.Lock()
	model := o.model
	o.mu.Unlock()

	go func() {
		defer close(ch)

		fail := func(err error) {
			select {
			case ch <- Chunk{Err: err, Done: true}:
			case <-ctx.Done():
			}
		}

		reqBody := chatRequest{
			Model:    model,
			Messages: messages,
			Stream:   true,
			Options:  wireOptions(opts),
		}
		body, err := json.Marshal(reqBody)
		if err != nil {
			fail(generationError("failed to marshal request", err))
			return
		}

		streamCtx, done := o.track(ctx)
		defer done()

		req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, o.config.BaseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			fail(generationError("failed to create request", err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := (&http.Client{}).Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fail(generationError("generation aborted", context.Canceled))
			} else {
				fail(ErrNotRunning)
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fail(responseError(resp))
			return
		}

		if err := readStream(streamCtx, resp.Body, ch); err != nil {
			fail(err)
		}
	}()

	return ch
}

// =============================================================================
// CONTROL
// =============================================================================

// Abort cancels the in-flight generation, if any.
func (o *Ollama) Abort() {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// ResetContext is a no-op: the Ollama chat API is stateless per request, so
// there is no engine-resident conversational memory to clear. The method
// exists to satisfy the contract for engines with resident KV state.
func (o *Ollama) ResetContext() {}

// Shutdown aborts any in-flight generation and asks the server to release
// the loaded model. Best effort; a dead server is not an error here.
func (o *Ollama) Shutdown() {
	o.Abort()

	o.mu.Lock()
	model := o.model
	o.model = ""
	o.mu.Unlock()

	if model == "" {
		return
	}

	// keep_alive 0 evicts the model from server memory.
	body, err := json.Marshal(unloadRequest{Model: model, KeepAlive: 0})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := o.post(ctx, "/api/generate", body)
	if err == nil {
		drainAndClose(resp.Body)
	}
}

// track derives a cancellable context registered for Abort. The returned
// done func unregisters (and cancels) it.
func (o *Ollama) track(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()

	return ctx, func() {
		o.cancelMu.Lock()
		if o.cancel != nil {
			o.cancel()
			o.cancel = nil
		}
		o.cancelMu.Unlock()
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (o *Ollama) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, ErrNotRunning
	}
	return resp, nil
}

// responseError extracts the server-reported error message when present.
func responseError(resp *http.Response) error {
	var serverErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&serverErr); err == nil && serverErr.Error != "" {
		return generationError(serverErr.Error, nil)
	}
	return generationError("chat request failed: "+resp.Status, nil)
}

func wireOptions(opts *Options) *chatOptions {
	if opts == nil {
		return nil
	}
	wire := &chatOptions{}
	if opts.Temperature != 0 {
		wire.Temperature = &opts.Temperature
	}
	if opts.MaxTokens != 0 {
		wire.NumPredict = &opts.MaxTokens
	}
	if wire.Temperature == nil && wire.NumPredict == nil {
		return nil
	}
	return wire
}
