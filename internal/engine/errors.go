// Copyright (c) 2025 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes engine errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotInitialized
	ErrTypeEmptyResponse
	ErrTypeGeneration
	ErrTypeInitialization
	ErrTypeConnection
	ErrTypeModelNotFound
)

// EngineError represents an error from the engine layer.
type EngineError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches engine errors by type, so wrapped instances compare equal to
// the package sentinels under errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Sentinel errors for easy checking.
var (
	// ErrNotInitialized is returned when a call reaches the Handle with no
	// ready engine. Recoverable by completing initialization first.
	ErrNotInitialized = &EngineError{Type: ErrTypeNotInitialized, Message: "engine not initialized"}

	// ErrEmptyResponse is returned when the engine produced no usable
	// content. Distinct from a silent empty string.
	ErrEmptyResponse = &EngineError{Type: ErrTypeEmptyResponse, Message: "engine returned empty response"}

	// ErrModelNotFound is returned when the requested model does not exist.
	ErrModelNotFound = &EngineError{Type: ErrTypeModelNotFound, Message: "model not found"}

	// ErrNotRunning is returned when the engine backend is unreachable.
	ErrNotRunning = &EngineError{Type: ErrTypeConnection, Message: "inference backend is not running"}
)

// generationError wraps a mid-generation failure.
func generationError(msg string, cause error) *EngineError {
	return &EngineError{Type: ErrTypeGeneration, Message: msg, Cause: cause}
}

// initializationError wraps a model-load failure.
func initializationError(msg string, cause error) *EngineError {
	return &EngineError{Type: ErrTypeInitialization, Message: msg, Cause: cause}
}
