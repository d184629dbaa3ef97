// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// parley.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.parley/config.toml
//   - ~/.parley/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/parley-chat/parley-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete parley configuration.
type Config struct {
	// Version of the config schema, for future migrations.
	Version string `toml:"version" json:"version"`

	// DefaultModel is the model loaded at startup.
	DefaultModel string `toml:"default_model" json:"default_model"`

	// Engine configuration (local Ollama server).
	Engine EngineConfig `toml:"engine" json:"engine"`

	// Generation parameters applied to every turn.
	Generation GenerationConfig `toml:"generation" json:"generation"`

	// Storage configuration (conversation database).
	Storage StorageConfig `toml:"storage" json:"storage"`

	// UI configuration.
	UI UIConfig `toml:"ui" json:"ui"`
}

// EngineConfig contains the inference engine connection settings.
type EngineConfig struct {
	// BaseURL is the URL of the Ollama server.
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs is the per-request timeout for non-streaming calls.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// PullMissing downloads the model when it is not present locally.
	PullMissing bool `toml:"pull_missing" json:"pull_missing"`
}

// GenerationConfig contains sampling parameters for replies.
type GenerationConfig struct {
	// Temperature controls sampling randomness. 0 disables the override.
	Temperature float64 `toml:"temperature" json:"temperature"`
	// MaxTokens caps the reply length. 0 lets the engine decide.
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// Stream delivers replies incrementally as they are generated.
	Stream bool `toml:"stream" json:"stream"`
}

// StorageConfig contains conversation persistence settings.
type StorageConfig struct {
	// Path is the SQLite database file (empty = ~/.parley/parley.db).
	Path string `toml:"path" json:"path"`
	// MaxConversations bounds the database; oldest conversations beyond
	// the limit are pruned on save. 0 disables pruning.
	MaxConversations int `toml:"max_conversations" json:"max_conversations"`
	// FlushDebounceMs is the delay between a conversation mutation and
	// its write to disk. Coalesces write bursts during generation.
	FlushDebounceMs int `toml:"flush_debounce_ms" json:"flush_debounce_ms"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// CompactMode uses a more compact layout (no sidebar).
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
	// ShowTimestamps renders message timestamps in the transcript.
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps"`
	// Markdown renders assistant replies through the markdown renderer.
	Markdown bool `toml:"markdown" json:"markdown"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: "llama3.2:3b",

		Engine: EngineConfig{
			BaseURL:     "http://127.0.0.1:11434",
			TimeoutSecs: 30,
			PullMissing: true,
		},

		Generation: GenerationConfig{
			Temperature: 0.7,
			MaxTokens:   0, // engine default
			Stream:      true,
		},

		Storage: StorageConfig{
			Path:             "", // resolved to ~/.parley/parley.db
			MaxConversations: 0,  // unlimited
			FlushDebounceMs:  400,
		},

		UI: UIConfig{
			Theme:          "dark",
			CompactMode:    false,
			ShowTimestamps: false,
			Markdown:       true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the parley configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	// Try JSON as fallback
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(cfg)
	if err != nil {
		return nil, err
	}
	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finish applies env overrides, defaults, and validation to a loaded config.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems; warn and go on.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Files ending in .json are decoded as JSON, everything else
// as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# parley configuration file\n")
	sb.WriteString("# Generated by parley - edit with care\n")
	sb.WriteString("\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Engine.BaseURL != "" {
		u, err := url.Parse(c.Engine.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "engine.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Engine.BaseURL),
			})
		}
	}

	if c.Engine.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.timeout_secs",
			Message: "must be non-negative",
		})
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "generation.temperature",
			Message: fmt.Sprintf("must be between 0.0 and 2.0, got %g", c.Generation.Temperature),
		})
	}

	if c.Generation.MaxTokens < 0 {
		errs = append(errs, ValidationError{
			Field:   "generation.max_tokens",
			Message: "must be non-negative",
		})
	}

	if c.Storage.MaxConversations < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.max_conversations",
			Message: "must be non-negative",
		})
	}

	if c.Storage.FlushDebounceMs < 0 || c.Storage.FlushDebounceMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "storage.flush_debounce_ms",
			Message: fmt.Sprintf("must be 0-60000, got %d", c.Storage.FlushDebounceMs),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = defaults.DefaultModel
	}

	if c.Engine.BaseURL == "" {
		c.Engine.BaseURL = defaults.Engine.BaseURL
	}
	if c.Engine.TimeoutSecs == 0 {
		c.Engine.TimeoutSecs = defaults.Engine.TimeoutSecs
	}

	if c.Storage.FlushDebounceMs == 0 {
		c.Storage.FlushDebounceMs = defaults.Storage.FlushDebounceMs
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PARLEY_MODEL: overrides default_model
//   - PARLEY_ENGINE_URL: overrides engine.base_url
//   - PARLEY_DB_PATH: overrides storage.path
//   - PARLEY_THEME: overrides ui.theme
//   - PARLEY_STREAM: set to "0" or "false" to disable streaming
//   - PARLEY_DEBOUNCE_MS: overrides storage.flush_debounce_ms
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("PARLEY_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if u := os.Getenv("PARLEY_ENGINE_URL"); u != "" {
		c.Engine.BaseURL = u
	}
	if path := os.Getenv("PARLEY_DB_PATH"); path != "" {
		c.Storage.Path = path
	}
	if theme := os.Getenv("PARLEY_THEME"); theme != "" {
		c.UI.Theme = theme
	}
	if stream := os.Getenv("PARLEY_STREAM"); stream != "" {
		c.Generation.Stream = !(stream == "0" || strings.ToLower(stream) == "false")
	}
	if ms := os.Getenv("PARLEY_DEBOUNCE_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			c.Storage.FlushDebounceMs = v
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Log but don't fail - use defaults
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
