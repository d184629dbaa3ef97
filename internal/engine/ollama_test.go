// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeOllama is a minimal in-process Ollama API.
type fakeOllama struct {
	// knownModels are reported as present by /api/show.
	knownModels map[string]bool

	// chatReply is the non-streaming reply content.
	chatReply string

	// streamChunks are the content fragments for a streaming chat.
	streamChunks []string

	// chatStatus, when nonzero, forces /api/chat to fail with this status
	// and chatError as the server-reported message.
	chatStatus int
	chatError  string

	pullCalls int
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	})

	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if f.knownModels[req.Name] {
			fmt.Fprint(w, `{}`)
			return
		}
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	})

	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		f.pullCalls++
		enc := json.NewEncoder(w)
		enc.Encode(map[string]any{"status": "pulling", "total": 100, "completed": 50})
		enc.Encode(map[string]any{"status": "pulling", "total": 100, "completed": 100})
		enc.Encode(map[string]any{"status": "success"})
		var req struct {
			Name string `json:"name"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if f.knownModels == nil {
			f.knownModels = map[string]bool{}
		}
		f.knownModels[req.Name] = true
	})

	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if f.chatStatus != 0 {
			http.Error(w, `{"error":"`+f.chatError+`"}`, f.chatStatus)
			return
		}

		var req struct {
			Stream   bool      `json:"stream"`
			Messages []Message `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		if !req.Stream {
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": f.chatReply},
				"done":    true,
			})
			return
		}

		enc := json.NewEncoder(w)
		for _, chunk := range f.streamChunks {
			enc.Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": chunk},
				"done":    false,
			})
		}
		enc.Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": ""},
			"done":    true,
		})
	})

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`) // unload acknowledgement
	})

	return mux
}

func newFakeServer(t *testing.T, f *fakeOllama) *Ollama {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewOllama(&OllamaConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, PullMissing: true})
}

func TestInitializeReportsStagedProgress(t *testing.T) {
	eng := newFakeServer(t, &fakeOllama{knownModels: map[string]bool{"llama3.2:3b": true}})

	var stages []string
	var percents []int
	err := eng.Initialize(context.Background(), "llama3.2:3b", func(p Progress) {
		stages = append(stages, p.Stage)
		percents = append(percents, p.Percent)
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if len(stages) == 0 || stages[0] != "connecting" {
		t.Errorf("stages = %v", stages)
	}
	if stages[len(stages)-1] != "ready" || percents[len(percents)-1] != 100 {
		t.Errorf("final progress: %v %v", stages, percents)
	}
	for _, p := range percents {
		if p < 0 || p > 100 {
			t.Errorf("out-of-range percent %d", p)
		}
	}
}

func TestInitializePullsMissingModel(t *testing.T) {
	f := &fakeOllama{knownModels: map[string]bool{}}
	eng := newFakeServer(t, f)

	var sawDownload bool
	err := eng.Initialize(context.Background(), "new-model", func(p Progress) {
		if p.Stage == "downloading weights" {
			sawDownload = true
		}
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if f.pullCalls != 1 {
		t.Errorf("pull called %d times", f.pullCalls)
	}
	if !sawDownload {
		t.Error("pull progress never reported the download stage")
	}
}

func TestInitializeMissingModelWithoutPull(t *testing.T) {
	srv := httptest.NewServer((&fakeOllama{}).handler())
	defer srv.Close()
	eng := NewOllama(&OllamaConfig{BaseURL: srv.URL, PullMissing: false})

	err := eng.Initialize(context.Background(), "absent", nil)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Initialize error = %v, want ErrModelNotFound", err)
	}
}

func TestInitializeServerDown(t *testing.T) {
	srv := httptest.NewServer((&fakeOllama{}).handler())
	srv.Close() // gone before we connect
	eng := NewOllama(&OllamaConfig{BaseURL: srv.URL, Timeout: time.Second})

	err := eng.Initialize(context.Background(), "m", nil)
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Initialize error = %v, want ErrNotRunning", err)
	}
}

func TestChat(t *testing.T) {
	eng := newFakeServer(t, &fakeOllama{
		knownModels: map[string]bool{"m": true},
		chatReply:   "42",
	})
	if err := eng.Initialize(context.Background(), "m", nil); err != nil {
		t.Fatal(err)
	}

	text, err := eng.Chat(context.Background(), []Message{NewUserMessage("meaning of life?")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != "42" {
		t.Errorf("reply = %q", text)
	}
}

func TestChatServerError(t *testing.T) {
	f := &fakeOllama{knownModels: map[string]bool{"m": true}}
	eng := newFakeServer(t, f)
	if err := eng.Initialize(context.Background(), "m", nil); err != nil {
		t.Fatal(err)
	}

	f.chatStatus = http.StatusInternalServerError
	f.chatError = "out of memory"

	_, err := eng.Chat(context.Background(), []Message{NewUserMessage("hi")}, nil)
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("Chat error = %v, want server message surfaced", err)
	}
}

func TestChatStream(t *testing.T) {
	eng := newFakeServer(t, &fakeOllama{
		knownModels:  map[string]bool{"m": true},
		streamChunks: []string{"Hel", "lo", " world"},
	})
	if err := eng.Initialize(context.Background(), "m", nil); err != nil {
		t.Fatal(err)
	}

	ch := eng.ChatStream(context.Background(), []Message{NewUserMessage("greet")}, &Options{Stream: true})

	var sb strings.Builder
	var done bool
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		sb.WriteString(chunk.Content)
		done = chunk.Done
	}
	if sb.String() != "Hello world" {
		t.Errorf("assembled reply = %q", sb.String())
	}
	if !done {
		t.Error("stream ended without a done chunk")
	}
}

func TestAbortCancelsStream(t *testing.T) {
	// A chat handler that trickles chunks forever until the client goes away.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "ok") })
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, `{}`) })
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		enc := json.NewEncoder(w)
		for i := 0; ; i++ {
			if r.Context().Err() != nil {
				return
			}
			enc.Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": "token "},
				"done":    false,
			})
			flusher.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eng := NewOllama(&OllamaConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err := eng.Initialize(context.Background(), "m", nil); err != nil {
		t.Fatal(err)
	}

	ch := eng.ChatStream(context.Background(), []Message{NewUserMessage("go on forever")}, &Options{Stream: true})

	// Read a few chunks, then abort.
	for i := 0; i < 3; i++ {
		if chunk := <-ch; chunk.Err != nil {
			t.Fatalf("early stream error: %v", chunk.Err)
		}
	}
	eng.Abort()

	var lastErr error
	for chunk := range ch {
		if chunk.Err != nil {
			lastErr = chunk.Err
		}
	}
	if lastErr == nil {
		t.Fatal("aborted stream ended without an error chunk")
	}
}

func TestHandleNotReady(t *testing.T) {
	h := NewHandle(NewOllamaFactory(DefaultOllamaConfig()))

	if h.Ready() {
		t.Fatal("fresh handle reports ready")
	}
	if _, err := h.Chat(context.Background(), nil, nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Chat error = %v, want ErrNotInitialized", err)
	}
	if _, err := h.ChatStream(context.Background(), nil, nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ChatStream error = %v, want ErrNotInitialized", err)
	}
}

func TestHandleEmptyResponse(t *testing.T) {
	eng := newFakeServer(t, &fakeOllama{
		knownModels: map[string]bool{"m": true},
		chatReply:   "",
	})
	h := NewHandle(func() Engine { return eng })
	if err := h.Initialize(context.Background(), "m", nil); err != nil {
		t.Fatal(err)
	}

	_, err := h.Chat(context.Background(), []Message{NewUserMessage("hi")}, nil)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Chat error = %v, want ErrEmptyResponse", err)
	}
}

func TestHandleSwitchReplacesModel(t *testing.T) {
	f := &fakeOllama{knownModels: map[string]bool{"a": true, "b": true}, chatReply: "ok"}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	h := NewHandle(NewOllamaFactory(&OllamaConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}))
	if err := h.Initialize(context.Background(), "a", nil); err != nil {
		t.Fatal(err)
	}
	if h.ModelID() != "a" {
		t.Fatalf("model = %q", h.ModelID())
	}

	if err := h.Initialize(context.Background(), "b", nil); err != nil {
		t.Fatal(err)
	}
	if h.ModelID() != "b" {
		t.Errorf("model after switch = %q", h.ModelID())
	}
	if !h.Ready() {
		t.Error("handle not ready after switch")
	}
}

// countingEngine records lifecycle calls so tests can assert how many
// engines a switch builds and tears down.
type countingEngine struct {
	initErr   error
	shutdowns int
}

func (c *countingEngine) Initialize(context.Context, string, ProgressFunc) error { return c.initErr }
func (c *countingEngine) Chat(context.Context, []Message, *Options) (string, error) {
	return "ok", nil
}
func (c *countingEngine) ChatStream(context.Context, []Message, *Options) <-chan Chunk {
	ch := make(chan Chunk)
	close(ch)
	return ch
}
func (c *countingEngine) Abort()        {}
func (c *countingEngine) ResetContext() {}
func (c *countingEngine) Shutdown()     { c.shutdowns++ }

func TestHandleSwitchUnloadsOnceBuildsOnce(t *testing.T) {
	var built []*countingEngine
	h := NewHandle(func() Engine {
		e := &countingEngine{}
		built = append(built, e)
		return e
	})

	if err := h.Initialize(context.Background(), "a", nil); err != nil {
		t.Fatal(err)
	}
	if err := h.Initialize(context.Background(), "b", nil); err != nil {
		t.Fatal(err)
	}

	if len(built) != 2 {
		t.Fatalf("constructed %d engines, want 2", len(built))
	}
	if built[0].shutdowns != 1 {
		t.Errorf("old engine shut down %d times, want exactly 1", built[0].shutdowns)
	}
	if built[1].shutdowns != 0 {
		t.Errorf("resident engine shut down %d times, want 0", built[1].shutdowns)
	}
}

func TestHandleFailedInitShutsDownNewEngine(t *testing.T) {
	var built []*countingEngine
	h := NewHandle(func() Engine {
		e := &countingEngine{initErr: ErrModelNotFound}
		built = append(built, e)
		return e
	})

	if err := h.Initialize(context.Background(), "missing", nil); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Initialize error = %v, want ErrModelNotFound", err)
	}
	if len(built) != 1 || built[0].shutdowns != 1 {
		t.Errorf("failed engine must still be shut down exactly once (built=%d, shutdowns=%d)",
			len(built), built[0].shutdowns)
	}
}

func TestHandleFailedSwitchStaysNotReady(t *testing.T) {
	f := &fakeOllama{knownModels: map[string]bool{"good": true}}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	cfg := &OllamaConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, PullMissing: false}
	h := NewHandle(NewOllamaFactory(cfg))
	if err := h.Initialize(context.Background(), "good", nil); err != nil {
		t.Fatal(err)
	}

	err := h.Initialize(context.Background(), "bad", nil)
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("switch error = %v", err)
	}
	if h.Ready() {
		t.Error("handle ready after failed switch")
	}
	if h.ModelID() != "" {
		t.Errorf("model after failed switch = %q", h.ModelID())
	}
}

func TestEngineErrorSentinelMatching(t *testing.T) {
	wrapped := initializationError("load failed", ErrNotRunning)
	if !errors.Is(wrapped, ErrNotRunning) {
		t.Error("wrapped cause does not match sentinel")
	}
	if errors.Is(ErrEmptyResponse, ErrNotInitialized) {
		t.Error("distinct sentinels compare equal")
	}
}
